package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusFailed      JobStatus = "FAILED"
)

func (t JobStatus) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *JobStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	switch JobStatus(s) {
	case JobStatusPending, JobStatusProcessing, JobStatusNeedsReview, JobStatusCompleted, JobStatusFailed:
		*t = JobStatus(s)
	default:
		return fmt.Errorf("invalid job status %q", s)
	}
	return nil
}

type IssueType string

const (
	IssueTypeMissingEmail       IssueType = "MISSING_EMAIL"
	IssueTypeInvalidEmailFormat IssueType = "INVALID_EMAIL_FORMAT"
	IssueTypeMissingFirstName   IssueType = "MISSING_FIRST_NAME"
	IssueTypeMissingLastName    IssueType = "MISSING_LAST_NAME"
	IssueTypeMissingCompany     IssueType = "MISSING_COMPANY"
	IssueTypeDuplicateEmail     IssueType = "DUPLICATE_EMAIL"
)

func (t IssueType) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *IssueType) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	issueTypes := map[string]IssueType{
		"MISSING_EMAIL":        IssueTypeMissingEmail,
		"INVALID_EMAIL_FORMAT": IssueTypeInvalidEmailFormat,
		"MISSING_FIRST_NAME":   IssueTypeMissingFirstName,
		"MISSING_LAST_NAME":    IssueTypeMissingLastName,
		"MISSING_COMPANY":      IssueTypeMissingCompany,
		"DUPLICATE_EMAIL":      IssueTypeDuplicateEmail,
	}
	v, ok := issueTypes[s]
	if !ok {
		return fmt.Errorf("invalid issue type %q", s)
	}
	*t = v
	return nil
}

type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "OPEN"
	IssueStatusResolved IssueStatus = "RESOLVED"
)

func (t IssueStatus) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *IssueStatus) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	switch IssueStatus(s) {
	case IssueStatusOpen, IssueStatusResolved:
		*t = IssueStatus(s)
	default:
		return fmt.Errorf("invalid issue status %q", s)
	}
	return nil
}

type ResolutionAction string

const (
	ResolutionActionChoose ResolutionAction = "choose"
	ResolutionActionEdit   ResolutionAction = "edit"
	ResolutionActionSkip   ResolutionAction = "skip"
)

func (t ResolutionAction) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *ResolutionAction) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	switch ResolutionAction(s) {
	case ResolutionActionChoose, ResolutionActionEdit, ResolutionActionSkip:
		*t = ResolutionAction(s)
	default:
		return fmt.Errorf("invalid resolution action %q", s)
	}
	return nil
}

func scanEnumString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.New("enum column must scan from string")
	}
}
