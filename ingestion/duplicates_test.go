package ingestion

import (
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

func validRow(id int, rowNumber int, email, first, last, company string) *models.ContactRow {
	return &models.ContactRow{
		ID:              id,
		JobId:           1,
		RowNumber:       rowNumber,
		Email:           email,
		FirstName:       first,
		LastName:        last,
		Company:         company,
		NormalizedEmail: NormalizeEmail(email),
		IsValid:         utils.NewTrue(),
	}
}

func TestDetectDuplicateGroups_IdenticalRowsAreNotConflicting(t *testing.T) {
	rows := []*models.ContactRow{
		validRow(1, 1, "a@x.com", "A", "B", "C"),
		validRow(2, 2, "a@x.com", "A", "B", "C"),
	}

	groups := DetectDuplicateGroups(rows)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Conflicting {
		t.Fatal("identical rows must not conflict")
	}
	if rep := groups[0].Representative(); rep.RowNumber != 1 {
		t.Fatalf("representative must be the lowest row number, got %d", rep.RowNumber)
	}
}

func TestDetectDuplicateGroups_DifferingFieldConflicts(t *testing.T) {
	rows := []*models.ContactRow{
		validRow(1, 1, "a@x.com", "A", "B", "C"),
		validRow(2, 2, "a@x.com", "X", "B", "C"),
	}

	groups := DetectDuplicateGroups(rows)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !groups[0].Conflicting {
		t.Fatal("differing first name must conflict")
	}
	if len(groups[0].Rows) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(groups[0].Rows))
	}
}

func TestDetectDuplicateGroups_ComparisonIsCaseInsensitiveAndTrimmed(t *testing.T) {
	rows := []*models.ContactRow{
		validRow(1, 1, "a@x.com", "Ann", "Bell", "Acme"),
		validRow(2, 2, "A@X.com", " ann ", "BELL", "acme "),
	}
	rows[1].NormalizedEmail = NormalizeEmail(rows[1].Email)

	groups := DetectDuplicateGroups(rows)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Conflicting {
		t.Fatal("case and whitespace differences must not conflict")
	}
}

func TestDetectDuplicateGroups_SingletonsAndDeterministicOrder(t *testing.T) {
	rows := []*models.ContactRow{
		validRow(1, 1, "only@x.com", "A", "B", "C"),
		validRow(2, 2, "b@x.com", "A", "B", "C"),
		validRow(3, 3, "b@x.com", "Z", "B", "C"),
		validRow(4, 4, "a@x.com", "A", "B", "C"),
		validRow(5, 5, "a@x.com", "A", "B", "C"),
	}

	groups := DetectDuplicateGroups(rows)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].NormalizedEmail != "a@x.com" || groups[1].NormalizedEmail != "b@x.com" {
		t.Fatalf("groups must be ordered by email: %q, %q",
			groups[0].NormalizedEmail, groups[1].NormalizedEmail)
	}
	if groups[0].Conflicting || !groups[1].Conflicting {
		t.Fatalf("unexpected conflict flags: %+v", groups)
	}
}

func TestDuplicateIssuePayload(t *testing.T) {
	rows := []*models.ContactRow{
		validRow(10, 1, "a@x.com", "A", "B", "C"),
		validRow(11, 2, "a@x.com", "X", "B", "C"),
	}
	groups := DetectDuplicateGroups(rows)
	payload := DuplicateIssuePayload(groups[0])

	if payload.Duplicate == nil || payload.Single != nil {
		t.Fatal("duplicate payload must set only the duplicate variant")
	}
	if payload.Duplicate.NormalizedEmail != "a@x.com" {
		t.Fatalf("unexpected key: %q", payload.Duplicate.NormalizedEmail)
	}
	if len(payload.Duplicate.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(payload.Duplicate.Candidates))
	}
	if payload.Duplicate.Candidates[0].RowId != 10 || payload.Duplicate.Candidates[1].RowId != 11 {
		t.Fatalf("candidates must be in row order: %+v", payload.Duplicate.Candidates)
	}
	if payload.Duplicate.Candidates[0].Data["first_name"] != "A" {
		t.Fatalf("candidate data must carry row fields: %+v", payload.Duplicate.Candidates[0].Data)
	}
}
