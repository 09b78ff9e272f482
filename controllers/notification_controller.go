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

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

func (nc *NotificationController) GetNotifications(c *gin.Context) {
	user := utils.GetUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	// Admins also see broadcast notifications (no recipient).
	query := nc.DB.Model(&models.Notification{})
	if user.IsAdmin() {
		query = query.Where("recipient_id = ? OR recipient_id IS NULL", user.UserID)
	} else {
		query = query.Where("recipient_id = ?", user.UserID)
	}
	if unread := c.Query("unread"); unread == "true" {
		query = query.Where("read = ?", false)
	}

	var total int64
	query.Count(&total)

	var notifications []models.Notification
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch notifications", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    notifications,
		Pagination: &PaginationMeta{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	user := utils.GetUser(c)

	var notification models.Notification
	if err := nc.DB.First(&notification, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	if notification.RecipientID != nil && *notification.RecipientID != user.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if notification.RecipientID == nil && !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	now := time.Now()
	notification.Read = true
	notification.ReadAt = &now
	if err := nc.DB.Save(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update notification", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: notification})
}
