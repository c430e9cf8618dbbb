package ingestion

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolveIssue applies one resolution action. Concurrent attempts on the
// same issue produce exactly one winner; the loser gets ErrorConflict.
// The job row is locked for the duration of the transaction so the open
// issue recount cannot race a parallel resolution or finalize.
func ResolveIssue(ctx context.Context, userId int, jobId int, issueId int, req ResolutionRequest) (*models.Issue, error) {
	releaseLock := obtainJobLock(ctx, jobId)
	defer releaseLock()

	db := config.GetDB()
	var resolved *models.Issue

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

		issue, err := models.GetIssue(tx, jobId, issueId)
		if err != nil {
			return err
		}
		if issue.Status != models.IssueStatusOpen {
			return utils.ErrorConflict
		}

		switch req.Action {
		case models.ResolutionActionChoose:
			if err := applyChoose(tx, issue, req); err != nil {
				return err
			}
		case models.ResolutionActionEdit:
			if err := applyEdit(tx, issue, req); err != nil {
				return err
			}
		case models.ResolutionActionSkip:
			if err := applySkip(tx, issue); err != nil {
				return err
			}
		default:
			return utils.ErrorConflict
		}

		won, err := models.MarkIssueResolved(tx, issue.ID)
		if err != nil {
			return err
		}
		if !won {
			return utils.ErrorConflict
		}

		resolution := &models.Resolution{
			IssueId:     issue.ID,
			JobId:       jobId,
			UserId:      userId,
			Action:      req.Action,
			ChosenRowId: req.ChosenRowId,
			RowId:       req.RowId,
			UpdatedData: models.UpdatedData(req.UpdatedData),
		}
		if err := models.CreateResolution(tx, resolution); err != nil {
			return err
		}

		if _, err := models.RecountOpenIssues(tx, jobId); err != nil {
			return err
		}

		issue.Status = models.IssueStatusResolved
		resolved = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// choose picks one candidate of a duplicate group as the sole surviving
// representative.
func applyChoose(tx *gorm.DB, issue *models.Issue, req ResolutionRequest) error {
	if !issue.IsDuplicate() || issue.Payload.Duplicate == nil {
		return utils.ErrorConflict
	}
	if req.ChosenRowId == nil {
		return &ResolutionValidationError{Field: "chosen_row_id", Reason: "value is required"}
	}

	chosen := *req.ChosenRowId
	found := false
	for _, candidate := range issue.Payload.Duplicate.Candidates {
		if candidate.RowId == chosen {
			found = true
			break
		}
	}
	if !found {
		return utils.ErrorConflict
	}

	for _, candidate := range issue.Payload.Duplicate.Candidates {
		isValid := candidate.RowId == chosen
		if err := tx.Model(&models.ContactRow{}).Where("id = ?", candidate.RowId).
			Update("is_valid", isValid).Error; err != nil {
			return err
		}
	}
	return nil
}

// edit replaces the one field the issue concerns, re-validates it with
// the first-pass rule, and re-checks duplicates when the email changed.
func applyEdit(tx *gorm.DB, issue *models.Issue, req ResolutionRequest) error {
	field, ok := editableFields[issue.Type]
	if !ok || issue.Payload.Single == nil {
		return utils.ErrorConflict
	}

	for name := range req.UpdatedData {
		if name != field {
			return &ResolutionValidationError{Field: name, Reason: "field is not editable for this issue"}
		}
	}
	value, ok := req.UpdatedData[field]
	if !ok {
		return &ResolutionValidationError{Field: field, Reason: "value is required"}
	}
	value = strings.TrimSpace(value)
	if verr := ValidateEditedValue(field, value); verr != nil {
		return verr
	}

	row, err := models.GetContactRow(tx, issue.JobId, issue.Payload.Single.RowId)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{"is_valid": true}
	switch field {
	case "email":
		updates["email"] = value
		updates["normalized_email"] = NormalizeEmail(value)
		row.Email = value
		row.NormalizedEmail = NormalizeEmail(value)
	case "first_name":
		updates["first_name"] = value
		row.FirstName = value
	case "last_name":
		updates["last_name"] = value
		row.LastName = value
	case "company":
		updates["company"] = value
		row.Company = value
	}
	row.IsValid = utils.NewTrue()
	if err := tx.Model(&models.ContactRow{}).Where("id = ?", row.ID).
		Updates(updates).Error; err != nil {
		return err
	}

	if field == "email" {
		return recheckDuplicatesAfterEdit(tx, row)
	}
	return nil
}

// recheckDuplicatesAfterEdit handles an edited email colliding with an
// existing clean row: identical rows dedupe silently, differing rows
// raise a fresh DUPLICATE_EMAIL issue.
func recheckDuplicatesAfterEdit(tx *gorm.DB, row *models.ContactRow) error {
	var group []*models.ContactRow
	err := tx.Where("job_id = ? AND normalized_email = ? AND is_valid = ?",
		row.JobId, row.NormalizedEmail, true).
		Order("row_number ASC").Find(&group).Error
	if err != nil {
		return err
	}
	if len(group) < 2 {
		return nil
	}

	for _, dupGroup := range DetectDuplicateGroups(group) {
		if !dupGroup.Conflicting {
			rep := dupGroup.Representative()
			for _, member := range dupGroup.Rows {
				if member.ID == rep.ID {
					continue
				}
				if err := tx.Model(&models.ContactRow{}).Where("id = ?", member.ID).
					Update("is_valid", false).Error; err != nil {
					return err
				}
			}
			continue
		}

		issue := &models.Issue{
			JobId:    row.JobId,
			Type:     models.IssueTypeDuplicateEmail,
			KeyValue: dupGroup.NormalizedEmail,
			Payload:  DuplicateIssuePayload(dupGroup),
		}
		if err := models.CreateIssueIfAbsent(tx, issue); err != nil {
			return err
		}
	}
	return nil
}

// skip removes the issue's rows from final output for good.
func applySkip(tx *gorm.DB, issue *models.Issue) error {
	if issue.IsDuplicate() {
		if issue.Payload.Duplicate == nil {
			return utils.ErrorConflict
		}
		for _, candidate := range issue.Payload.Duplicate.Candidates {
			if err := tx.Model(&models.ContactRow{}).Where("id = ?", candidate.RowId).
				Update("is_valid", false).Error; err != nil {
				return err
			}
		}
		return nil
	}

	if issue.Payload.Single == nil {
		return utils.ErrorConflict
	}
	return tx.Model(&models.ContactRow{}).Where("id = ?", issue.Payload.Single.RowId).
		Update("is_valid", false).Error
}

// obtainJobLock serializes resolution traffic for one job across
// replicas. Best effort: the DB transition guards stay authoritative,
// so a missed lock never blocks the request.
func obtainJobLock(ctx context.Context, jobId int) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	job := models.Job{ID: jobId}
	lock, err := locker.Obtain(ctx, job.RedisLockKey(), 10*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 5),
	})
	if err != nil {
		return func() {}
	}
	return func() { _ = lock.Release(context.Background()) }
}
