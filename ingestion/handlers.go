package ingestion

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

func sessionUserId(c *gin.Context) (int, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return userId, true
}

// UploadJobHandler accepts a multipart CSV, stores it and enqueues the
// ingest message. The job is created PENDING; all parsing happens in the
// worker.
func UploadJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		if strings.ToLower(filepath.Ext(fileHeader.Filename)) != ".csv" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv files are accepted"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		ctx := c.Request.Context()
		blobKey := path.Join(fmt.Sprintf("u%d", userId), "jobs", uuid.NewString()+".csv")
		if err := utils.UploadBlob(ctx, blobKey, data, "text/csv"); err != nil {
			config.LogError(logger, "ingestion", "UploadJobHandler", "upload", blobKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}

		job, err := models.CreateJob(ctx, userId, filepath.Base(fileHeader.Filename), blobKey)
		if err != nil {
			config.LogError(logger, "ingestion", "UploadJobHandler", "create job", blobKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
			return
		}

		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		messageId, err := config.PublishIngestJob(ctx, config.IngestJobMessage{
			JobId:         job.ID,
			BlobKey:       blobKey,
			CorrelationId: correlationId,
		})
		if err != nil {
			config.LogError(logger, "ingestion", "UploadJobHandler", "publish", job.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
			return
		}

		logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"user_id":    userId,
			"message_id": messageId,
			"size":       len(data),
		}).Info("[job.uploaded]")

		c.JSON(http.StatusCreated, gin.H{"data": job})
	}
}

func ListJobsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		jobs, err := models.GetJobs(c.Request.Context(), userId, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": jobs})
	}
}

// GetJobHandler returns the job with its rows, issues and resolution
// history, and the final contact set once the job is completed.
func GetJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		jobId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
			return
		}

		ctx := c.Request.Context()
		job, err := models.GetJob(ctx, userId, jobId)
		if err != nil {
			respondModelError(c, err)
			return
		}

		rows, err := models.GetContactRows(ctx, job.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rows"})
			return
		}

		issues, err := models.GetIssuesForJob(ctx, job.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load issues"})
			return
		}

		resolutions, err := models.GetResolutionsForJob(ctx, job.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load resolutions"})
			return
		}

		response := gin.H{"job": job, "rows": rows, "issues": issues, "resolutions": resolutions}
		if job.Status == models.JobStatusCompleted {
			contacts, err := models.GetFinalContacts(ctx, job.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
				return
			}
			response["final_contacts"] = contacts
		}
		c.JSON(http.StatusOK, gin.H{"data": response})
	}
}

func ResolveIssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		jobId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
			return
		}
		issueId, err := strconv.Atoi(c.Param("issueId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue id"})
			return
		}

		var req ResolutionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		issue, err := ResolveIssue(c.Request.Context(), userId, jobId, issueId, req)
		if err != nil {
			var verr *ResolutionValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "field": verr.Field})
				return
			}
			respondModelError(c, err)
			return
		}

		job, err := models.GetJob(c.Request.Context(), userId, jobId)
		if err != nil {
			respondModelError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"issue": issue, "open_issues": job.ConflictCount}})
	}
}

func FinalizeJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := sessionUserId(c)
		if !ok {
			return
		}
		jobId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
			return
		}

		job, err := FinalizeJob(c.Request.Context(), userId, jobId)
		if err != nil {
			respondModelError(c, err)
			return
		}

		contacts, err := models.GetFinalContacts(c.Request.Context(), job.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"job": job, "final_contacts": contacts}})
	}
}

func respondModelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
