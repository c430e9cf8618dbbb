package ingestion

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer trace.Tracer = otel.Tracer("ingestion")

// ProcessIngestJob runs the full validation and detection pass for one
// claimed job. A nil return means the queue message can be acknowledged,
// including the fatal path where the job lands on FAILED. A non-nil
// return is transient; the caller nacks and the queue redelivers.
//
// Replays are safe: the claim accepts PROCESSING and every pass starts
// by clearing the job's partial rows and issues.
func ProcessIngestJob(ctx context.Context, jobId int) error {
	ctx, span := tracer.Start(ctx, "ProcessIngestJob")
	defer span.End()
	span.SetAttributes(attribute.Int("job_id", jobId))

	logger := config.GetLogger()

	job, err := models.GetJobById(ctx, jobId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			logger.WithField("job_id", jobId).Warn("ingest message for unknown job, dropping")
			return nil
		}
		return err
	}

	claimed, err := models.ClaimJobForProcessing(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// already NEEDS_REVIEW, COMPLETED or FAILED; redelivered late
		logger.WithField("job_id", job.ID).Info("job already settled, dropping message")
		return nil
	}

	data, err := utils.DownloadBlob(ctx, job.BlobKey)
	if err != nil {
		if errors.Is(err, utils.ErrorBlobNotFound) {
			return failJob(ctx, job, "source file is missing from storage")
		}
		return err
	}

	rows, err := ParseContactsCSV(data)
	if err != nil {
		if utils.IsFatalIngestError(err) {
			return failJob(ctx, job, err.Error())
		}
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearPartialState(tx, job.ID); err != nil {
			return err
		}

		validRows, invalidRows, err := persistValidationPass(tx, job, rows)
		if err != nil {
			return err
		}

		openIssues, err := detectAndPersistDuplicates(tx, job, validRows)
		if err != nil {
			return err
		}
		openIssues += len(invalidRows)

		// silent dedupe may have flipped rows to invalid
		validCount := 0
		for _, row := range validRows {
			if row.IsValid != nil && *row.IsValid {
				validCount++
			}
		}

		job.TotalRows = len(rows)
		job.ValidRows = validCount
		job.InvalidRows = len(rows) - validCount
		job.ConflictCount = openIssues

		if openIssues > 0 {
			return job.UpdateCountsAndStatus(tx, models.JobStatusNeedsReview)
		}
		// clean pass: finalize immediately
		if err := job.UpdateCountsAndStatus(tx, models.JobStatusProcessing); err != nil {
			return err
		}
		return finalizeInTx(tx, job.ID)
	})
}

// failJob clears the job's partial records and marks it FAILED in one
// transaction; a crash between the two can never leave a FAILED job with
// rows or issues attached.
func failJob(ctx context.Context, job *models.Job, message string) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearPartialState(tx, job.ID); err != nil {
			return err
		}
		return models.SetJobFailed(tx, job.ID, message)
	})
	if err != nil {
		return err
	}

	// the source blob has no further use once the job is terminal
	if err := utils.DeleteBlob(ctx, job.BlobKey); err != nil {
		config.GetLogger().WithField("job_id", job.ID).WithError(err).
			Warn("failed to delete blob of failed job")
	}

	config.GetLogger().WithField("job_id", job.ID).WithField("reason", message).
		Warn("job failed fatally")
	return nil
}

func clearPartialState(tx *gorm.DB, jobId int) error {
	if err := models.DeleteIssuesForJob(tx, jobId); err != nil {
		return err
	}
	if err := models.DeleteRowsForJob(tx, jobId); err != nil {
		return err
	}
	return models.DeleteFinalContactsForJob(tx, jobId)
}

// persistValidationPass stores one ContactRow per parsed row and one
// OPEN issue per defective row. Defective rows stay stored with
// is_valid=false until resolved.
func persistValidationPass(tx *gorm.DB, job *models.Job, rows []ParsedRow) (validRows []*models.ContactRow, invalidRows []*models.ContactRow, err error) {
	for _, parsed := range rows {
		defect := ClassifyRow(parsed)

		row := &models.ContactRow{
			JobId:           job.ID,
			RowNumber:       parsed.RowNumber,
			Email:           parsed.Email,
			FirstName:       parsed.FirstName,
			LastName:        parsed.LastName,
			Company:         parsed.Company,
			NormalizedEmail: NormalizeEmail(parsed.Email),
			IsValid:         utils.NewFalse(),
		}
		if defect == nil {
			row.IsValid = utils.NewTrue()
		}
		if err := tx.Create(row).Error; err != nil {
			return nil, nil, err
		}

		if defect == nil {
			validRows = append(validRows, row)
			continue
		}
		invalidRows = append(invalidRows, row)

		issue := &models.Issue{
			JobId:    job.ID,
			Type:     defect.Type,
			KeyValue: models.SingleRowIssueKey(parsed.RowNumber),
			Payload: models.IssuePayload{Single: &models.SingleRowPayload{
				RowId:     row.ID,
				RowNumber: row.RowNumber,
				Data:      row.FieldMap(),
				Reason:    defect.Reason,
			}},
		}
		if err := models.CreateIssueIfAbsent(tx, issue); err != nil {
			return nil, nil, err
		}
	}
	return validRows, invalidRows, nil
}

// detectAndPersistDuplicates scans valid rows for shared emails. Identical
// groups collapse silently to the lowest row number; conflicting groups
// each raise one DUPLICATE_EMAIL issue. Returns the open issue count it
// contributed.
func detectAndPersistDuplicates(tx *gorm.DB, job *models.Job, validRows []*models.ContactRow) (int, error) {
	open := 0
	for _, group := range DetectDuplicateGroups(validRows) {
		if group.Conflicting {
			issue := &models.Issue{
				JobId:    job.ID,
				Type:     models.IssueTypeDuplicateEmail,
				KeyValue: group.NormalizedEmail,
				Payload:  DuplicateIssuePayload(group),
			}
			if err := models.CreateIssueIfAbsent(tx, issue); err != nil {
				return 0, err
			}
			open++
			continue
		}

		rep := group.Representative()
		for _, row := range group.Rows {
			if row.ID == rep.ID {
				continue
			}
			if err := tx.Model(&models.ContactRow{}).Where("id = ?", row.ID).
				Update("is_valid", false).Error; err != nil {
				return 0, err
			}
			row.IsValid = utils.NewFalse()
		}
	}
	return open, nil
}
