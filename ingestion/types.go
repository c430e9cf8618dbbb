package ingestion

import (
	"fmt"

	"bitbucket.org/mmdatafocus/contacts_backend/models"
)

// ParsedRow is one CSV data line after header mapping, before any
// validation. RowNumber is 1-based over data rows.
type ParsedRow struct {
	RowNumber int
	Email     string
	FirstName string
	LastName  string
	Company   string
}

func (r ParsedRow) FieldMap() map[string]string {
	return map[string]string{
		"email":      r.Email,
		"first_name": r.FirstName,
		"last_name":  r.LastName,
		"company":    r.Company,
	}
}

// RowDefect is the first validation failure found on a row.
type RowDefect struct {
	Type   models.IssueType
	Reason string
}

// ResolutionRequest is the HTTP-boundary shape for closing an issue.
type ResolutionRequest struct {
	Action      models.ResolutionAction `json:"action" binding:"required"`
	ChosenRowId *int                    `json:"chosen_row_id"`
	RowId       *int                    `json:"row_id"`
	UpdatedData map[string]string       `json:"updated_data"`
}

// ResolutionValidationError rejects an edit whose supplied value fails
// field validation. The issue stays OPEN and nothing is mutated.
type ResolutionValidationError struct {
	Field  string
	Reason string
}

func (e *ResolutionValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}
