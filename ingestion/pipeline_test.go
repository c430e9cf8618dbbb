package ingestion

import (
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

// runValidationPass mirrors the worker's in-transaction pass without a
// database: parse, classify, detect, compute the final set.
type passResult struct {
	rows      []*models.ContactRow
	defects   map[int]models.IssueType // row number -> defect
	conflicts []DuplicateGroup
	contacts  []*models.FinalContact
}

func runValidationPass(t *testing.T, csvData string) passResult {
	t.Helper()

	parsed, err := ParseContactsCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	result := passResult{defects: map[int]models.IssueType{}}
	var valid []*models.ContactRow
	for i, p := range parsed {
		row := &models.ContactRow{
			ID:              i + 1,
			JobId:           1,
			RowNumber:       p.RowNumber,
			Email:           p.Email,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			Company:         p.Company,
			NormalizedEmail: NormalizeEmail(p.Email),
			IsValid:         utils.NewFalse(),
		}
		if defect := ClassifyRow(p); defect != nil {
			result.defects[p.RowNumber] = defect.Type
		} else {
			row.IsValid = utils.NewTrue()
			valid = append(valid, row)
		}
		result.rows = append(result.rows, row)
	}

	for _, group := range DetectDuplicateGroups(valid) {
		if group.Conflicting {
			result.conflicts = append(result.conflicts, group)
			continue
		}
		rep := group.Representative()
		for _, row := range group.Rows {
			if row.ID != rep.ID {
				row.IsValid = utils.NewFalse()
			}
		}
	}

	var stillValid []*models.ContactRow
	for _, row := range valid {
		if *row.IsValid {
			stillValid = append(stillValid, row)
		}
	}
	result.contacts = ComputeFinalContacts(1, stillValid)
	return result
}

func TestPipeline_IdenticalDuplicatesCollapseSilently(t *testing.T) {
	result := runValidationPass(t,
		"email,first_name,last_name,company\n"+
			"a@x.com,A,B,C\n"+
			"a@x.com,A,B,C\n")

	if len(result.defects) != 0 {
		t.Fatalf("expected no defects, got %+v", result.defects)
	}
	if len(result.conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d", len(result.conflicts))
	}
	if len(result.contacts) != 1 {
		t.Fatalf("expected one final contact, got %d", len(result.contacts))
	}
	if result.contacts[0].FirstName != "A" {
		t.Fatalf("unexpected representative: %+v", result.contacts[0])
	}
}

func TestPipeline_ConflictingDuplicateRaisesOneIssue(t *testing.T) {
	result := runValidationPass(t,
		"email,first_name,last_name,company\n"+
			"a@x.com,A,B,C\n"+
			"a@x.com,X,B,C\n")

	if len(result.conflicts) != 1 {
		t.Fatalf("expected one conflict group, got %d", len(result.conflicts))
	}
	if got := len(result.conflicts[0].Rows); got != 2 {
		t.Fatalf("expected 2 candidates, got %d", got)
	}

	// choosing row 1 leaves exactly its data in the final set
	group := result.conflicts[0]
	chosen := group.Rows[0]
	var survivors []*models.ContactRow
	for _, row := range group.Rows {
		if row.ID == chosen.ID {
			survivors = append(survivors, row)
		}
	}
	contacts := ComputeFinalContacts(1, survivors)
	if len(contacts) != 1 || contacts[0].FirstName != "A" {
		t.Fatalf("choose must leave the chosen row's data: %+v", contacts)
	}
}

func TestPipeline_MissingEmailThenEditBecomesValid(t *testing.T) {
	result := runValidationPass(t,
		"email,first_name,last_name,company\n"+
			",John,Doe,Acme\n")

	if result.defects[1] != models.IssueTypeMissingEmail {
		t.Fatalf("expected MISSING_EMAIL, got %v", result.defects[1])
	}

	if verr := ValidateEditedValue("email", "john@doe.com"); verr != nil {
		t.Fatalf("valid replacement must be accepted: %v", verr)
	}

	row := result.rows[0]
	row.Email = "john@doe.com"
	row.NormalizedEmail = NormalizeEmail(row.Email)
	row.IsValid = utils.NewTrue()

	contacts := ComputeFinalContacts(1, []*models.ContactRow{row})
	if len(contacts) != 1 || contacts[0].Email != "john@doe.com" {
		t.Fatalf("edited row must reach the final set: %+v", contacts)
	}
}

func TestPipeline_InvalidEmailEditRejected(t *testing.T) {
	result := runValidationPass(t,
		"email,first_name,last_name,company\n"+
			"bad-email,J,D,Acme\n")

	if result.defects[1] != models.IssueTypeInvalidEmailFormat {
		t.Fatalf("expected INVALID_EMAIL_FORMAT, got %v", result.defects[1])
	}
	if verr := ValidateEditedValue("email", "not valid"); verr == nil {
		t.Fatal("invalid replacement must be rejected")
	}
	// rejection leaves the row out of the final set
	if len(result.contacts) != 0 {
		t.Fatalf("defective row must not reach the final set: %+v", result.contacts)
	}
}

func TestPipeline_MixedFileCounts(t *testing.T) {
	result := runValidationPass(t,
		"email,first_name,last_name,company\n"+
			"a@x.com,A,B,C\n"+
			",J,D,Acme\n"+
			"b@x.com,E,F,G\n"+
			"b@x.com,E,F,G\n"+
			"c@x.com,H,I,J\n"+
			"c@x.com,Z,I,J\n")

	if len(result.defects) != 1 {
		t.Fatalf("expected 1 row defect, got %+v", result.defects)
	}
	if len(result.conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(result.conflicts))
	}
	// distinct emails among non-defective rows: a, b, c; the conflicting
	// c group still counts its rows valid until resolved
	if len(result.contacts) != 3 {
		t.Fatalf("expected 3 contacts before conflict resolution, got %d", len(result.contacts))
	}
}

func TestPipeline_FileWithoutHeaderFailsWhole(t *testing.T) {
	_, err := ParseContactsCSV([]byte("no-header-row\n"))
	if err == nil || !utils.IsFatalIngestError(err) {
		t.Fatalf("expected fatal ingest error, got %v", err)
	}
}
