package models

import (
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey provides durable, DB-backed idempotency for worker handlers.
// Unique constraint: (handler_name, message_id).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	HandlerName string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	MessageId   string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"message_id"`
	JobId       int               `gorm:"index" json:"job_id"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeginIdempotent records the first delivery of a message. Returns the
// existing record and false when the message was seen before.
func BeginIdempotent(db *gorm.DB, handlerName string, messageId string, jobId int) (*IdempotencyKey, bool, error) {
	record := IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		JobId:       jobId,
		Status:      IdempotencyStatusStarted,
	}
	err := db.Create(&record).Error
	if err == nil {
		return &record, true, nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		var existing IdempotencyKey
		if err := db.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
			Take(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return nil, false, err
}

func (record *IdempotencyKey) MarkSucceeded(db *gorm.DB) error {
	return db.Model(record).Updates(map[string]interface{}{
		"status":     IdempotencyStatusSucceeded,
		"last_error": gorm.Expr("NULL"),
	}).Error
}

func (record *IdempotencyKey) MarkFailed(db *gorm.DB, cause error) error {
	msg := cause.Error()
	return db.Model(record).Updates(map[string]interface{}{
		"status":     IdempotencyStatusFailed,
		"last_error": msg,
	}).Error
}
