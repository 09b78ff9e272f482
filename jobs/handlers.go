package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/reunite-app/api-go/matching"
	"github.com/reunite-app/api-go/models"
	"gorm.io/gorm"
)

// Per-type worker pool sizes.
const (
	EmbeddingWorkers = 5
	MatchWorkers     = 3
	BatchWorkers     = 2
	CleanupWorkers   = 1
)

// Retention windows enforced by the cleanup job.
const (
	readNotificationMaxAge = 30 * 24 * time.Hour
	completedJobMaxAge     = 7 * 24 * time.Hour
)

// PipelinePayload is the payload for the matching job types.
type PipelinePayload struct {
	ReportID uint `json:"report_id,omitempty"`
	ImageID  uint `json:"image_id,omitempty"`
}

// RegisterMatchingHandlers binds the embedding and match-finding job types
// to the pipeline. The handlers call the same processor and resolver the
// synchronous request path uses; nothing about them depends on the trigger.
func RegisterMatchingHandlers(q *Queue, processor *matching.Processor, resolver *matching.Resolver) {
	q.Register(TypeProcessImageEmbeddings, EmbeddingWorkers, func(ctx context.Context, payload []byte) error {
		var p PipelinePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return processor.ProcessImage(ctx, p.ImageID)
	})

	q.Register(TypeBatchProcessImages, BatchWorkers, func(ctx context.Context, payload []byte) error {
		var p PipelinePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return processor.ProcessReportImages(ctx, p.ReportID)
	})

	q.Register(TypeFindMatches, MatchWorkers, func(ctx context.Context, payload []byte) error {
		var p PipelinePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		result, err := resolver.FindMatches(ctx, p.ReportID)
		if err != nil {
			return err
		}
		log.Printf("jobqueue: find-matches for report %d: %d accepted, %d skipped",
			p.ReportID, len(result.Matches), result.Skipped)
		return nil
	})
}

// RegisterCleanupHandler binds the recurring low-priority housekeeping job:
// read notifications past retention, expired refresh tokens and old
// completed queue rows.
func RegisterCleanupHandler(q *Queue, db *gorm.DB) {
	q.Register(TypeCleanupOldData, CleanupWorkers, func(ctx context.Context, _ []byte) error {
		cutoff := time.Now().Add(-readNotificationMaxAge)
		if err := db.Unscoped().
			Where("read = ? AND created_at < ?", true, cutoff).
			Delete(&models.Notification{}).Error; err != nil {
			return fmt.Errorf("expire notifications: %w", err)
		}

		if err := db.Unscoped().
			Where("expiration_date < ?", time.Now()).
			Delete(&models.RefreshToken{}).Error; err != nil {
			return fmt.Errorf("expire refresh tokens: %w", err)
		}

		jobCutoff := time.Now().Add(-completedJobMaxAge)
		if err := db.
			Where("status = ? AND finished_at < ?", models.JobStatusCompleted, jobCutoff).
			Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("prune completed jobs: %w", err)
		}
		return nil
	})
}
