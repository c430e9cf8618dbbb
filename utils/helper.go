package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail is the coarse account-level email check used for user
// registration. Row-level CSV validation has its own stricter rule in
// the ingestion package.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}
