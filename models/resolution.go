package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"gorm.io/gorm"
)

type UpdatedData map[string]string

func (d UpdatedData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *UpdatedData) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("updated data must scan from bytes")
	}
	return json.Unmarshal(raw, d)
}

// Resolution is the immutable audit record of how an issue was closed.
// Written exactly once, in the same transaction that flips the issue to
// RESOLVED.
type Resolution struct {
	ID           int              `gorm:"primary_key" json:"id"`
	IssueId      int              `gorm:"not null;unique" json:"issue_id"`
	JobId        int              `gorm:"not null;index" json:"job_id"`
	UserId       int              `gorm:"not null" json:"user_id"`
	Action       ResolutionAction `gorm:"size:16;not null" json:"action"`
	ChosenRowId  *int             `json:"chosen_row_id"`
	RowId        *int             `json:"row_id"`
	UpdatedData  UpdatedData      `gorm:"type:json" json:"updated_data"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func CreateResolution(tx *gorm.DB, resolution *Resolution) error {
	return tx.Create(resolution).Error
}

func GetResolutionsForJob(ctx context.Context, jobId int) ([]*Resolution, error) {
	db := config.GetDB()
	var resolutions []*Resolution

	err := db.WithContext(ctx).Where("job_id = ?", jobId).
		Order("id ASC").Find(&resolutions).Error
	if err != nil {
		return nil, err
	}
	return resolutions, nil
}
