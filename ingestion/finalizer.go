package ingestion

import (
	"context"
	"errors"
	"sort"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComputeFinalContacts derives the output set from the rows that remain
// valid after all resolutions: one contact per distinct normalized
// email, represented by the lowest row number. Emails within the result
// are unique by construction.
func ComputeFinalContacts(jobId int, rows []*models.ContactRow) []*models.FinalContact {
	byEmail := make(map[string]*models.ContactRow)
	for _, row := range rows {
		existing, ok := byEmail[row.NormalizedEmail]
		if !ok || row.RowNumber < existing.RowNumber {
			byEmail[row.NormalizedEmail] = row
		}
	}

	contacts := make([]*models.FinalContact, 0, len(byEmail))
	for email, row := range byEmail {
		contacts = append(contacts, &models.FinalContact{
			JobId:     jobId,
			Email:     email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Company:   row.Company,
		})
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Email < contacts[j].Email
	})
	return contacts
}

// FinalizeJob recomputes the final contact set for a job with zero open
// issues and moves it to COMPLETED. With open issues remaining it fails
// with a conflict and mutates nothing. The job row is locked so a
// resolution landing mid-finalize cannot slip past the recount.
func FinalizeJob(ctx context.Context, userId int, jobId int) (*models.Job, error) {
	releaseLock := obtainJobLock(ctx, jobId)
	defer releaseLock()

	db := config.GetDB()
	var finalized *models.Job

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", jobId, userId).Take(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if job.Status == models.JobStatusPending || job.Status == models.JobStatusFailed {
			return utils.ErrorConflict
		}

		if err := finalizeInTx(tx, jobId); err != nil {
			return err
		}

		job.Status = models.JobStatusCompleted
		job.ConflictCount = 0
		finalized = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// finalizeInTx does the guarded recount plus delete-and-recreate of the
// final set. Callers hold the job row lock or are the sole worker for
// the job.
func finalizeInTx(tx *gorm.DB, jobId int) error {
	open, err := models.RecountOpenIssues(tx, jobId)
	if err != nil {
		return err
	}
	if open > 0 {
		return utils.ErrorConflict
	}

	rows, err := models.GetValidContactRows(tx, jobId)
	if err != nil {
		return err
	}

	contacts := ComputeFinalContacts(jobId, rows)
	if err := models.ReplaceFinalContactsForJob(tx, jobId, contacts); err != nil {
		return err
	}

	return tx.Model(&models.Job{}).Where("id = ?", jobId).
		Updates(map[string]interface{}{
			"status":         models.JobStatusCompleted,
			"conflict_count": 0,
		}).Error
}
