package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"gorm.io/gorm"
)

// ContactRow is one parsed CSV line of a job. RowNumber is the 1-based
// ordinal over data rows (the header is not counted) and is stable for
// the life of the job; (job_id, row_number) is unique so an interleaved
// replay cannot store a row twice. After the validation pass only
// IsValid and the field values change, and only through issue
// resolution.
type ContactRow struct {
	ID              int       `gorm:"primary_key" json:"id"`
	JobId           int       `gorm:"not null;index:uniq_job_row,unique" json:"job_id"`
	RowNumber       int       `gorm:"not null;index:uniq_job_row,unique" json:"row_number"`
	Email           string    `gorm:"size:255" json:"email"`
	FirstName       string    `gorm:"size:255" json:"first_name"`
	LastName        string    `gorm:"size:255" json:"last_name"`
	Company         string    `gorm:"size:255" json:"company"`
	NormalizedEmail string    `gorm:"size:255;index" json:"normalized_email"`
	IsValid         *bool     `gorm:"not null" json:"is_valid"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (row *ContactRow) FieldMap() map[string]string {
	return map[string]string{
		"email":      row.Email,
		"first_name": row.FirstName,
		"last_name":  row.LastName,
		"company":    row.Company,
	}
}

func GetContactRow(tx *gorm.DB, jobId int, rowId int) (*ContactRow, error) {
	var row ContactRow
	err := tx.Where("id = ? AND job_id = ?", rowId, jobId).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

func GetContactRows(ctx context.Context, jobId int) ([]*ContactRow, error) {
	db := config.GetDB()
	var rows []*ContactRow

	err := db.WithContext(ctx).Where("job_id = ?", jobId).
		Order("row_number ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetValidContactRows returns the rows still eligible for final output,
// in row order.
func GetValidContactRows(tx *gorm.DB, jobId int) ([]*ContactRow, error) {
	var rows []*ContactRow
	err := tx.Where("job_id = ? AND is_valid = ?", jobId, true).
		Order("row_number ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteRowsForJob clears a job's rows before a replay pass.
func DeleteRowsForJob(tx *gorm.DB, jobId int) error {
	return tx.Where("job_id = ?", jobId).Delete(&ContactRow{}).Error
}
