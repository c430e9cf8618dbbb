package ingestion

import (
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportJobHandler streams the finalized contact set of a completed job
// as an XLSX workbook.
func ExportJobHandler() gin.HandlerFunc {
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
		if job.Status != models.JobStatusCompleted {
			c.JSON(http.StatusConflict, gin.H{"error": "job is not completed"})
			return
		}

		contacts, err := models.GetFinalContacts(ctx, job.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
			return
		}

		workbook, err := buildContactsWorkbook(job, contacts)
		if err != nil {
			config.LogError(config.GetLogger(), "ingestion", "ExportJobHandler", "build workbook", job.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}

		buf, err := workbook.WriteToBuffer()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}

		filename := fmt.Sprintf("contacts-job-%d.xlsx", job.ID)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func buildContactsWorkbook(job *models.Job, contacts []*models.FinalContact) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Contacts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Email", "First Name", "Last Name", "Company"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for rowIdx, contact := range contacts {
		values := []string{contact.Email, contact.FirstName, contact.LastName, contact.Company}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	summary := fmt.Sprintf("%s: %d contacts", job.Filename, len(contacts))
	if err := f.SetDocProps(&excelize.DocProperties{Title: summary}); err != nil {
		return nil, err
	}

	return f, nil
}
