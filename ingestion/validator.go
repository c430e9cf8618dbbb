package ingestion

import (
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
)

const maxEmailLength = 254

var (
	localPartPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+$`)
	domainPattern    = regexp.MustCompile(`^[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+$`)
)

// NormalizeEmail produces the grouping key for duplicate detection.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmailFormat checks a row email: exactly one @ away from the
// string boundaries, a restricted local part, a domain with at least one
// dot, no embedded list separators, at most 254 characters.
func IsValidEmailFormat(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	if strings.ContainsAny(email, ";,") {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.Index(email, "@")
	if at == 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if !localPartPattern.MatchString(local) {
		return false
	}
	return domainPattern.MatchString(domain)
}

// ClassifyRow returns the row's first defect, or nil for a clean row.
// Checks run in a fixed order so re-running classification on an
// unmodified row is deterministic.
func ClassifyRow(row ParsedRow) *RowDefect {
	email := strings.TrimSpace(row.Email)
	if email == "" {
		return &RowDefect{Type: models.IssueTypeMissingEmail, Reason: "email is missing"}
	}
	if !IsValidEmailFormat(email) {
		return &RowDefect{Type: models.IssueTypeInvalidEmailFormat, Reason: "email format is invalid"}
	}
	if strings.TrimSpace(row.FirstName) == "" {
		return &RowDefect{Type: models.IssueTypeMissingFirstName, Reason: "first name is missing"}
	}
	if strings.TrimSpace(row.LastName) == "" {
		return &RowDefect{Type: models.IssueTypeMissingLastName, Reason: "last name is missing"}
	}
	if strings.TrimSpace(row.Company) == "" {
		return &RowDefect{Type: models.IssueTypeMissingCompany, Reason: "company is missing"}
	}
	return nil
}

// editableFields maps each single-row issue type to the one field an
// edit resolution may supply.
var editableFields = map[models.IssueType]string{
	models.IssueTypeMissingEmail:       "email",
	models.IssueTypeInvalidEmailFormat: "email",
	models.IssueTypeMissingFirstName:   "first_name",
	models.IssueTypeMissingLastName:    "last_name",
	models.IssueTypeMissingCompany:     "company",
}

// ValidateEditedValue re-applies the relevant first-pass rule to a value
// supplied by an edit resolution.
func ValidateEditedValue(field string, value string) *ResolutionValidationError {
	value = strings.TrimSpace(value)
	if value == "" {
		return &ResolutionValidationError{Field: field, Reason: "value is required"}
	}
	if field == "email" && !IsValidEmailFormat(value) {
		return &ResolutionValidationError{Field: field, Reason: "email format is invalid"}
	}
	return nil
}
