package controllers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/models"
	"github.com/reunite-app/api-go/utils"
	"gorm.io/gorm"
)

type MatchController struct {
	DB *gorm.DB
}

func NewMatchController(db *gorm.DB) *MatchController {
	return &MatchController{DB: db}
}

type VerifyMatchRequest struct {
	Status string `json:"status" binding:"required,oneof=MATCHED REJECTED CLOSED"`
	Notes  string `json:"notes"`
}

func (mc *MatchController) GetMatches(c *gin.Context) {
	user := utils.GetUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := mc.DB.Model(&models.Match{}).
		Preload("MissingReport").Preload("MissingReport.Images").
		Preload("FoundReport").Preload("FoundReport.Images")

	if !user.IsAdmin() {
		query = query.
			Joins("JOIN reports mr ON mr.id = matches.missing_report_id").
			Joins("JOIN reports fr ON fr.id = matches.found_report_id").
			Where("mr.owner_id = ? OR fr.owner_id = ?", user.UserID, user.UserID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("matches.status = ?", status)
	}

	var total int64
	query.Count(&total)

	var matches []models.Match
	if err := query.Order("matches.confidence DESC, matches.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&matches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch matches", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    matches,
		Pagination: &PaginationMeta{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

func (mc *MatchController) GetMatch(c *gin.Context) {
	user := utils.GetUser(c)

	var match models.Match
	err := mc.DB.
		Preload("MissingReport").Preload("MissingReport.Images").
		Preload("FoundReport").Preload("FoundReport.Images").
		First(&match, c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}

	if !user.IsAdmin() &&
		match.MissingReport.OwnerID != user.UserID &&
		match.FoundReport.OwnerID != user.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: match})
}

// VerifyMatch is the administrative confirmation step. REJECTED and CLOSED
// set here are terminal; resolver re-runs will not flip them back.
func (mc *MatchController) VerifyMatch(c *gin.Context) {
	user := utils.GetUser(c)

	var match models.Match
	if err := mc.DB.First(&match, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}

	var req VerifyMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	match.Status = req.Status
	match.VerifiedByID = &user.UserID
	match.VerifiedAt = &now
	if req.Notes != "" {
		match.Notes = req.Notes
	}

	if err := mc.DB.Save(&match).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update match", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: match})
}
