package ingestion

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

// NOTE: Like worker_test.go these run without a database. They cover the
// request validation of the resolution actions, which rejects before any
// row is touched, so every test passes a nil transaction. The
// transactional halves (choose flipping candidate validity, skip
// invalidating rows, finalize refusing to mutate with open issues, the
// fatal path committing cleanup and FAILED together) need MySQL and
// belong in the same integration suite the worker tests name.

func duplicateIssue(rowIds ...int) *models.Issue {
	candidates := make([]models.DuplicateCandidate, 0, len(rowIds))
	for i, id := range rowIds {
		candidates = append(candidates, models.DuplicateCandidate{
			RowId:     id,
			RowNumber: i + 1,
			Data:      map[string]string{"email": "a@x.com"},
		})
	}
	return &models.Issue{
		ID:       1,
		JobId:    1,
		Type:     models.IssueTypeDuplicateEmail,
		KeyValue: "a@x.com",
		Status:   models.IssueStatusOpen,
		Payload: models.IssuePayload{Duplicate: &models.DuplicatePayload{
			NormalizedEmail: "a@x.com",
			Candidates:      candidates,
		}},
	}
}

func singleIssue(issueType models.IssueType) *models.Issue {
	return &models.Issue{
		ID:       1,
		JobId:    1,
		Type:     issueType,
		KeyValue: "1",
		Status:   models.IssueStatusOpen,
		Payload: models.IssuePayload{Single: &models.SingleRowPayload{
			RowId:     10,
			RowNumber: 1,
			Data:      map[string]string{"email": ""},
			Reason:    "email is missing",
		}},
	}
}

func TestApplyChoose_RejectsSingleRowIssue(t *testing.T) {
	chosen := 10
	err := applyChoose(nil, singleIssue(models.IssueTypeMissingEmail),
		ResolutionRequest{Action: models.ResolutionActionChoose, ChosenRowId: &chosen})
	if !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("choose on a single-row issue must conflict, got %v", err)
	}
}

func TestApplyChoose_RequiresChosenRowId(t *testing.T) {
	err := applyChoose(nil, duplicateIssue(10, 11),
		ResolutionRequest{Action: models.ResolutionActionChoose})

	var verr *ResolutionValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "chosen_row_id" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestApplyChoose_RejectsNonCandidateRow(t *testing.T) {
	chosen := 99
	err := applyChoose(nil, duplicateIssue(10, 11),
		ResolutionRequest{Action: models.ResolutionActionChoose, ChosenRowId: &chosen})
	if !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("choosing outside the candidate set must conflict, got %v", err)
	}
}

func TestApplyEdit_RejectsDuplicateIssue(t *testing.T) {
	err := applyEdit(nil, duplicateIssue(10, 11),
		ResolutionRequest{Action: models.ResolutionActionEdit,
			UpdatedData: map[string]string{"email": "a@x.com"}})
	if !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("edit on a duplicate issue must conflict, got %v", err)
	}
}

func TestApplyEdit_RejectsForeignField(t *testing.T) {
	err := applyEdit(nil, singleIssue(models.IssueTypeMissingEmail),
		ResolutionRequest{Action: models.ResolutionActionEdit,
			UpdatedData: map[string]string{"company": "Acme"}})

	var verr *ResolutionValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "company" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestApplyEdit_RequiresValue(t *testing.T) {
	err := applyEdit(nil, singleIssue(models.IssueTypeMissingEmail),
		ResolutionRequest{Action: models.ResolutionActionEdit})

	var verr *ResolutionValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "email" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestApplyEdit_RevalidatesEmail(t *testing.T) {
	err := applyEdit(nil, singleIssue(models.IssueTypeInvalidEmailFormat),
		ResolutionRequest{Action: models.ResolutionActionEdit,
			UpdatedData: map[string]string{"email": "still broken"}})

	var verr *ResolutionValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "email" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestApplySkip_RejectsEmptyPayload(t *testing.T) {
	duplicate := &models.Issue{Type: models.IssueTypeDuplicateEmail, Status: models.IssueStatusOpen}
	if err := applySkip(nil, duplicate); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("duplicate issue without candidates must conflict, got %v", err)
	}

	single := &models.Issue{Type: models.IssueTypeMissingEmail, Status: models.IssueStatusOpen}
	if err := applySkip(nil, single); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("single-row issue without a row must conflict, got %v", err)
	}
}
