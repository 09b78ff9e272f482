package controllers

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/jobs"
	"github.com/reunite-app/api-go/matching"
	"github.com/reunite-app/api-go/models"
	"github.com/reunite-app/api-go/utils"
	"gorm.io/gorm"
)

type ReportController struct {
	DB        *gorm.DB
	Queue     *jobs.Queue
	Processor *matching.Processor
	Resolver  *matching.Resolver
}

func NewReportController(db *gorm.DB, queue *jobs.Queue, processor *matching.Processor, resolver *matching.Resolver) *ReportController {
	return &ReportController{DB: db, Queue: queue, Processor: processor, Resolver: resolver}
}

type ReportImageRequest struct {
	URL      string `json:"url" binding:"required,url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

type CreateReportRequest struct {
	Role           string               `json:"role" binding:"required,oneof=PARENT FINDER"`
	ChildName      string               `json:"childName"`
	ApproximateAge int                  `json:"approximateAge"`
	Gender         string               `json:"gender"`
	Description    string               `json:"description" binding:"required"`
	Location       string               `json:"location" binding:"required"`
	OccurredAt     string               `json:"occurredAt"`
	ContactPhone   string               `json:"contactPhone"`
	Images         []ReportImageRequest `json:"images" binding:"required,min=1,dive"`
}

type UpdateReportRequest struct {
	ChildName      string `json:"childName"`
	ApproximateAge int    `json:"approximateAge"`
	Gender         string `json:"gender"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	ContactPhone   string `json:"contactPhone"`
}

// CreateReport godoc
// @Summary Create a missing or found report
// @Description Creates a report with its images and kicks off the matching pipeline
// @Tags reports
// @Accept json
// @Produce json
// @Param report body CreateReportRequest true "Report creation request"
// @Success 201 {object} models.Report
// @Router /reports [post]
func (rc *ReportController) CreateReport(c *gin.Context) {
	user := utils.GetUser(c)
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := models.Report{
		Role:           models.ReportRole(req.Role),
		Status:         models.ReportStatusActive,
		OwnerID:        user.UserID,
		ChildName:      req.ChildName,
		ApproximateAge: req.ApproximateAge,
		Gender:         req.Gender,
		Description:    req.Description,
		Location:       req.Location,
		ContactPhone:   req.ContactPhone,
	}

	if req.OccurredAt != "" {
		if parsed, err := time.Parse(time.RFC3339, req.OccurredAt); err == nil {
			report.OccurredAt = &parsed
		}
	}

	for _, img := range req.Images {
		report.Images = append(report.Images, models.ReportImage{
			URL:      img.URL,
			FileName: img.FileName,
			FileSize: img.FileSize,
			MimeType: img.MimeType,
		})
	}

	if err := rc.DB.Create(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create report", "success": false})
		return
	}

	rc.triggerPipeline(report.ID)

	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Data:    report,
		Message: "Report created, matching started",
	})
}

// triggerPipeline schedules embedding processing and match finding for a
// report. Both a durable queued run and an inline best-effort run fire; the
// two race by design and the match upsert keeps the outcome idempotent.
func (rc *ReportController) triggerPipeline(reportID uint) {
	payload := jobs.PipelinePayload{ReportID: reportID}
	if _, err := rc.Queue.Enqueue(jobs.TypeBatchProcessImages, payload); err != nil {
		log.Printf("reports: enqueue %s for report %d failed: %v", jobs.TypeBatchProcessImages, reportID, err)
	}
	if _, err := rc.Queue.Enqueue(jobs.TypeFindMatches, payload, jobs.WithDelay(30*time.Second)); err != nil {
		log.Printf("reports: enqueue %s for report %d failed: %v", jobs.TypeFindMatches, reportID, err)
	}

	// Inline fire-and-forget run. The short delay keeps it off the request's
	// critical path and gives the image upload CDN a moment to settle.
	go func() {
		time.Sleep(2 * time.Second)
		ctx := context.Background()
		if err := rc.Processor.ProcessReportImages(ctx, reportID); err != nil {
			log.Printf("reports: inline processing for report %d: %v", reportID, err)
		}
		if _, err := rc.Resolver.FindMatches(ctx, reportID); err != nil {
			log.Printf("reports: inline match finding for report %d: %v", reportID, err)
		}
	}()
}

func (rc *ReportController) GetReports(c *gin.Context) {
	user := utils.GetUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := rc.DB.Model(&models.Report{}).Preload("Images")
	if !user.IsAdmin() {
		query = query.Where("owner_id = ?", user.UserID)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var reports []models.Report
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch reports", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    reports,
		Pagination: &PaginationMeta{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

func (rc *ReportController) GetReport(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.Preload("Images").First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
}

func (rc *ReportController) UpdateReport(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ChildName != "" {
		report.ChildName = req.ChildName
	}
	if req.ApproximateAge != 0 {
		report.ApproximateAge = req.ApproximateAge
	}
	if req.Gender != "" {
		report.Gender = req.Gender
	}
	if req.Description != "" {
		report.Description = req.Description
	}
	if req.Location != "" {
		report.Location = req.Location
	}
	if req.ContactPhone != "" {
		report.ContactPhone = req.ContactPhone
	}

	if err := rc.DB.Save(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update report", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
}

// AddReportImage attaches another photo to an existing report and queues it
// for embedding extraction, followed by a fresh match run.
func (rc *ReportController) AddReportImage(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req ReportImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image := models.ReportImage{
		ReportID: report.ID,
		URL:      req.URL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		MimeType: req.MimeType,
	}
	if err := rc.DB.Create(&image).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not add image", "success": false})
		return
	}

	if _, err := rc.Queue.Enqueue(jobs.TypeProcessImageEmbeddings,
		jobs.PipelinePayload{ReportID: report.ID, ImageID: image.ID}); err != nil {
		log.Printf("reports: enqueue %s for image %d failed: %v", jobs.TypeProcessImageEmbeddings, image.ID, err)
	}
	if _, err := rc.Queue.Enqueue(jobs.TypeFindMatches,
		jobs.PipelinePayload{ReportID: report.ID}, jobs.WithDelay(30*time.Second)); err != nil {
		log.Printf("reports: enqueue %s for report %d failed: %v", jobs.TypeFindMatches, report.ID, err)
	}

	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Data:    image,
		Message: "Image queued for processing",
	})
}

func (rc *ReportController) UpdateReportStatus(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=ACTIVE RESOLVED CLOSED CANCELLED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report.Status = req.Status
	if err := rc.DB.Save(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update status", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: report})
}

func (rc *ReportController) DeleteReport(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	// Matches and images go with the report.
	err := rc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("missing_report_id = ? OR found_report_id = ?", report.ID, report.ID).
			Delete(&models.Match{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", report.ID).Delete(&models.ReportImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&report).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete report", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Message: "Report deleted"})
}

// FindMatches runs the resolver synchronously for a report and returns the
// accepted candidates from this run.
func (rc *ReportController) FindMatches(c *gin.Context) {
	user := utils.GetUser(c)

	var report models.Report
	if err := rc.DB.First(&report, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if report.OwnerID != user.UserID && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	result, err := rc.Resolver.FindMatches(c.Request.Context(), report.ID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    result,
		Meta:    gin.H{"matchesFound": len(result.Matches), "candidatesSkipped": result.Skipped},
	})
}
