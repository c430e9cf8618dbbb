package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"gorm.io/gorm"
)

// Job tracks one uploaded CSV from PENDING through review to a terminal
// status. Only the worker and the finalizer mutate status and counters.
type Job struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserId        int       `gorm:"not null;index" json:"user_id"`
	Filename      string    `gorm:"size:255;not null" json:"filename"`
	BlobKey       string    `gorm:"size:512;not null" json:"blob_key"`
	Status        JobStatus `gorm:"size:20;not null;index" json:"status"`
	TotalRows     int       `gorm:"not null;default:0" json:"total_rows"`
	ValidRows     int       `gorm:"not null;default:0" json:"valid_rows"`
	InvalidRows   int       `gorm:"not null;default:0" json:"invalid_rows"`
	ConflictCount int       `gorm:"not null;default:0" json:"conflict_count"`
	ErrorMessage  *string   `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateJob(ctx context.Context, userId int, filename string, blobKey string) (*Job, error) {
	db := config.GetDB()

	job := Job{
		UserId:   userId,
		Filename: filename,
		BlobKey:  blobKey,
		Status:   JobStatusPending,
	}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func GetJob(ctx context.Context, userId int, jobId int) (*Job, error) {
	db := config.GetDB()
	var job Job

	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", jobId, userId).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

// GetJobById loads a job without the owner scope. Worker-side only;
// HTTP handlers go through GetJob.
func GetJobById(ctx context.Context, jobId int) (*Job, error) {
	db := config.GetDB()
	var job Job

	err := db.WithContext(ctx).Take(&job, jobId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

func GetJobs(ctx context.Context, userId int, limit int, offset int) ([]*Job, error) {
	db := config.GetDB()
	var jobs []*Job

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	err := db.WithContext(ctx).Where("user_id = ?", userId).
		Order("id DESC").Limit(limit).Offset(offset).Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimJobForProcessing is the compare-and-set that keeps two workers from
// double-processing one job. PROCESSING is also accepted so a redelivered
// message for a crashed run can re-enter; the replay path clears partial
// rows and issues before validating again.
func ClaimJobForProcessing(ctx context.Context, jobId int) (bool, error) {
	db := config.GetDB()

	result := db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", jobId, []JobStatus{JobStatusPending, JobStatusProcessing}).
		Update("status", JobStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetJobFailed records a fatal ingest error inside the caller's
// transaction, so the FAILED status and the partial-state cleanup commit
// or roll back together.
func SetJobFailed(tx *gorm.DB, jobId int, message string) error {
	return tx.Model(&Job{}).Where("id = ?", jobId).
		Updates(map[string]interface{}{
			"status":        JobStatusFailed,
			"error_message": message,
		}).Error
}

func (job *Job) UpdateCountsAndStatus(tx *gorm.DB, status JobStatus) error {
	return tx.Model(&Job{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":         status,
			"total_rows":     job.TotalRows,
			"valid_rows":     job.ValidRows,
			"invalid_rows":   job.InvalidRows,
			"conflict_count": job.ConflictCount,
			"error_message":  gorm.Expr("NULL"),
		}).Error
}

// RecountOpenIssues refreshes conflict_count from the live OPEN issue
// count inside the caller's transaction and returns the count.
func RecountOpenIssues(tx *gorm.DB, jobId int) (int, error) {
	var open int64
	if err := tx.Model(&Issue{}).
		Where("job_id = ? AND status = ?", jobId, IssueStatusOpen).
		Count(&open).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&Job{}).Where("id = ?", jobId).
		Update("conflict_count", open).Error; err != nil {
		return 0, err
	}
	return int(open), nil
}

func (job *Job) RedisLockKey() string {
	return fmt.Sprintf("JobLock:%d", job.ID)
}
