package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"gorm.io/gorm"
)

// FinalContact is one entry of a job's deduplicated output set. The set
// is derived state: every successful finalize deletes and recreates it.
type FinalContact struct {
	ID        int       `gorm:"primary_key" json:"id"`
	JobId     int       `gorm:"not null;index:uniq_final,unique" json:"job_id"`
	Email     string    `gorm:"size:255;not null;index:uniq_final,unique" json:"email"`
	FirstName string    `gorm:"size:255" json:"first_name"`
	LastName  string    `gorm:"size:255" json:"last_name"`
	Company   string    `gorm:"size:255" json:"company"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func DeleteFinalContactsForJob(tx *gorm.DB, jobId int) error {
	return tx.Where("job_id = ?", jobId).Delete(&FinalContact{}).Error
}

// ReplaceFinalContactsForJob swaps in a freshly computed output set
// inside the caller's transaction.
func ReplaceFinalContactsForJob(tx *gorm.DB, jobId int, contacts []*FinalContact) error {
	if err := DeleteFinalContactsForJob(tx, jobId); err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}
	return tx.Create(&contacts).Error
}

func GetFinalContacts(ctx context.Context, jobId int) ([]*FinalContact, error) {
	db := config.GetDB()
	var contacts []*FinalContact

	err := db.WithContext(ctx).Where("job_id = ?", jobId).
		Order("email ASC").Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}
