package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/jobs"
	"github.com/reunite-app/api-go/matching"
	"gorm.io/gorm"
)

type SystemController struct {
	DB        *gorm.DB
	Queue     *jobs.Queue
	Extractor *matching.Extractor
	Config    *config.MatchingConfig
}

func NewSystemController(db *gorm.DB, queue *jobs.Queue, extractor *matching.Extractor, cfg *config.MatchingConfig) *SystemController {
	return &SystemController{DB: db, Queue: queue, Extractor: extractor, Config: cfg}
}

// Health reports overall service health. The service stays up when the face
// service is down (the extractor degrades to fingerprints), so an
// unreachable face service reports "degraded", not an error.
func (sc *SystemController) Health(c *gin.Context) {
	status := "healthy"

	sqlDB, err := sc.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	faceServiceUp := sc.Extractor.FaceService().Health(ctx) == nil
	if !faceServiceUp {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"face_service_up": faceServiceUp,
		"match_mode":      sc.Config.Mode,
		"match_threshold": sc.Config.Threshold,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// QueueStats exposes the work queue counters to operators.
func (sc *SystemController) QueueStats(c *gin.Context) {
	stats, err := sc.Queue.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch queue stats", "success": false})
		return
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: stats})
}
