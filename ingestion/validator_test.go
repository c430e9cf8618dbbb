package ingestion

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
)

func TestIsValidEmailFormat(t *testing.T) {
	valid := []string{
		"a@x.com",
		"john.doe@example.co.uk",
		"user+tag@sub.domain.org",
		"UPPER%case_1@host-name.io",
	}
	for _, email := range valid {
		if !IsValidEmailFormat(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{
		"",
		"plainaddress",
		"@x.com",
		"a@",
		"a@@x.com",
		"a@b@c.com",
		"a@nodot",
		"a;b@x.com",
		"a@x.com;b@y.com",
		"a,b@x.com",
		"has space@x.com",
		"a@x.",
		strings.Repeat("a", 250) + "@x.com",
	}
	for _, email := range invalid {
		if IsValidEmailFormat(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestClassifyRow_FirstDefectOnly(t *testing.T) {
	tests := []struct {
		name string
		row  ParsedRow
		want models.IssueType
	}{
		{"missing email wins over all", ParsedRow{Email: "", FirstName: "", LastName: "", Company: ""}, models.IssueTypeMissingEmail},
		{"invalid email before names", ParsedRow{Email: "bad-email", FirstName: "", LastName: "", Company: ""}, models.IssueTypeInvalidEmailFormat},
		{"first name before last name", ParsedRow{Email: "a@x.com", FirstName: "", LastName: "", Company: ""}, models.IssueTypeMissingFirstName},
		{"last name before company", ParsedRow{Email: "a@x.com", FirstName: "J", LastName: "", Company: ""}, models.IssueTypeMissingLastName},
		{"company last", ParsedRow{Email: "a@x.com", FirstName: "J", LastName: "D", Company: ""}, models.IssueTypeMissingCompany},
		{"whitespace counts as missing", ParsedRow{Email: "a@x.com", FirstName: "  ", LastName: "D", Company: "Acme"}, models.IssueTypeMissingFirstName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defect := ClassifyRow(tt.row)
			if defect == nil {
				t.Fatal("expected a defect")
			}
			if defect.Type != tt.want {
				t.Fatalf("got %s, want %s", defect.Type, tt.want)
			}
		})
	}
}

func TestClassifyRow_CleanAndDeterministic(t *testing.T) {
	row := ParsedRow{RowNumber: 1, Email: "a@x.com", FirstName: "Ann", LastName: "Bell", Company: "Acme"}
	if defect := ClassifyRow(row); defect != nil {
		t.Fatalf("expected clean, got %+v", defect)
	}

	bad := ParsedRow{RowNumber: 2, Email: "bad"}
	first := ClassifyRow(bad)
	for i := 0; i < 10; i++ {
		again := ClassifyRow(bad)
		if again == nil || again.Type != first.Type {
			t.Fatalf("classification must be deterministic, run %d got %+v", i, again)
		}
	}
}

func TestValidateEditedValue(t *testing.T) {
	if err := ValidateEditedValue("email", "fixed@x.com"); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if err := ValidateEditedValue("email", "not valid"); err == nil {
		t.Fatal("expected rejection for invalid email")
	}
	if err := ValidateEditedValue("first_name", "   "); err == nil {
		t.Fatal("expected rejection for blank value")
	}
	if err := ValidateEditedValue("company", "Acme"); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  John@Example.COM "); got != "john@example.com" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeEmail(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
