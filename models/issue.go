package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// SingleRowPayload describes a per-row defect.
type SingleRowPayload struct {
	RowId     int               `json:"row_id"`
	RowNumber int               `json:"row_number"`
	Data      map[string]string `json:"data"`
	Reason    string            `json:"reason"`
}

type DuplicateCandidate struct {
	RowId     int               `json:"row_id"`
	RowNumber int               `json:"row_number"`
	Data      map[string]string `json:"data"`
}

// DuplicatePayload describes an email shared by rows whose other fields
// disagree. Every member of the group is listed as a candidate.
type DuplicatePayload struct {
	NormalizedEmail string               `json:"normalized_email"`
	Candidates      []DuplicateCandidate `json:"candidates"`
}

// IssuePayload is a tagged union: exactly one of Single or Duplicate is
// set, matching the issue type. Stored as a JSON column.
type IssuePayload struct {
	Single    *SingleRowPayload `json:"single,omitempty"`
	Duplicate *DuplicatePayload `json:"duplicate,omitempty"`
}

func (p IssuePayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *IssuePayload) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("issue payload must scan from bytes")
	}
	return json.Unmarshal(raw, p)
}

// Issue is one detected defect. KeyValue disambiguates within a job:
// the normalized email for duplicate issues, the row number rendered as
// a string for single-row issues. (job_id, type, key_value) is unique so
// a replayed validation pass upserts instead of duplicating.
type Issue struct {
	ID        int          `gorm:"primary_key" json:"id"`
	JobId     int          `gorm:"not null;index:uniq_issue,unique" json:"job_id"`
	Type      IssueType    `gorm:"size:32;not null;index:uniq_issue,unique" json:"type"`
	KeyValue  string       `gorm:"size:255;not null;index:uniq_issue,unique;column:key_value" json:"key"`
	Status    IssueStatus  `gorm:"size:16;not null;index" json:"status"`
	Payload   IssuePayload `gorm:"type:json" json:"payload"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (issue *Issue) IsDuplicate() bool {
	return issue.Type == IssueTypeDuplicateEmail
}

func SingleRowIssueKey(rowNumber int) string {
	return fmt.Sprint(rowNumber)
}

const mysqlErrDuplicateEntry = 1062

// CreateIssueIfAbsent inserts an OPEN issue, treating a duplicate-key
// collision as success. Collisions happen on message redelivery after
// the run that inserted the issue crashed before acknowledging.
func CreateIssueIfAbsent(tx *gorm.DB, issue *Issue) error {
	issue.Status = IssueStatusOpen
	err := tx.Create(issue).Error
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return tx.Where("job_id = ? AND type = ? AND key_value = ?",
			issue.JobId, issue.Type, issue.KeyValue).Take(issue).Error
	}
	return err
}

func GetIssue(tx *gorm.DB, jobId int, issueId int) (*Issue, error) {
	var issue Issue
	err := tx.Where("id = ? AND job_id = ?", issueId, jobId).Take(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func GetIssuesForJob(ctx context.Context, jobId int) ([]*Issue, error) {
	db := config.GetDB()
	var issues []*Issue

	err := db.WithContext(ctx).Where("job_id = ?", jobId).
		Order("id ASC").Find(&issues).Error
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// MarkIssueResolved performs the guarded OPEN to RESOLVED transition.
// Returns false when another caller already resolved the issue.
func MarkIssueResolved(tx *gorm.DB, issueId int) (bool, error) {
	result := tx.Model(&Issue{}).
		Where("id = ? AND status = ?", issueId, IssueStatusOpen).
		Update("status", IssueStatusResolved)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteIssuesForJob clears a job's issues before a replay pass.
func DeleteIssuesForJob(tx *gorm.DB, jobId int) error {
	return tx.Where("job_id = ?", jobId).Delete(&Issue{}).Error
}
