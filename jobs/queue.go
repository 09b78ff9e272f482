// Package jobs provides the durable background work queue. Jobs live in a
// database table so the store stays the single synchronization point; each
// job type runs with its own bounded worker pool and failed jobs retry with
// exponential backoff before landing in a failed state for inspection.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reunite-app/api-go/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job types handled by the queue.
const (
	TypeProcessImageEmbeddings = "process-image-embeddings"
	TypeFindMatches            = "find-matches"
	TypeBatchProcessImages     = "batch-process-images"
	TypeCleanupOldData         = "cleanup-old-data"
)

var ErrUnknownJobType = errors.New("no handler registered for job type")

// Handler executes one job. A returned error triggers the retry policy.
type Handler func(ctx context.Context, payload []byte) error

// RetryConfig controls backoff between attempts.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 30 * time.Second,
		MaxDelay:     10 * time.Minute,
		Multiplier:   2.0,
	}
}

// Delay returns the backoff before the given retry (attempt is 1-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

type registration struct {
	handler Handler
	workers int
}

// Queue polls the jobs table and dispatches to registered handlers.
type Queue struct {
	db    *gorm.DB
	retry RetryConfig
	poll  time.Duration

	mu       sync.RWMutex
	handlers map[string]registration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{
		db:       db,
		retry:    DefaultRetryConfig(),
		poll:     time.Second,
		handlers: make(map[string]registration),
		stop:     make(chan struct{}),
	}
}

// Register binds a handler and its worker-pool size to a job type. Must be
// called before Start.
func (q *Queue) Register(jobType string, workers int, handler Handler) {
	if workers < 1 {
		workers = 1
	}
	q.mu.Lock()
	q.handlers[jobType] = registration{handler: handler, workers: workers}
	q.mu.Unlock()
}

type enqueueOptions struct {
	priority int
	delay    time.Duration
}

type Option func(*enqueueOptions)

func WithPriority(priority int) Option {
	return func(o *enqueueOptions) { o.priority = priority }
}

func WithDelay(delay time.Duration) Option {
	return func(o *enqueueOptions) { o.delay = delay }
}

// Enqueue persists a job for asynchronous execution and returns its handle.
func (q *Queue) Enqueue(jobType string, payload interface{}, opts ...Option) (*models.Job, error) {
	options := enqueueOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	status := models.JobStatusWaiting
	if options.delay > 0 {
		status = models.JobStatusDelayed
	}
	job := models.Job{
		JobID:       uuid.New().String(),
		Type:        jobType,
		Payload:     datatypes.JSON(encoded),
		Status:      status,
		Priority:    options.priority,
		MaxAttempts: q.retry.MaxAttempts,
		RunAt:       time.Now().Add(options.delay),
	}
	if err := q.db.Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Start launches the worker pools. Each registered job type gets its own
// bounded set of workers polling the table.
func (q *Queue) Start(ctx context.Context) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for jobType, reg := range q.handlers {
		for i := 0; i < reg.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx, jobType, reg.handler)
		}
	}
}

// Stop signals all workers and waits for in-flight jobs to finish. Jobs are
// never cancelled mid-flight; a running job completes or fails normally.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, jobType string, handler Handler) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-ticker.C:
			for {
				job, err := q.claim(jobType)
				if err != nil {
					log.Printf("jobqueue: claiming %s job failed: %v", jobType, err)
					break
				}
				if job == nil {
					break
				}
				q.run(ctx, job, handler)
			}
		}
	}
}

// claim picks the next runnable job of the given type and moves it to
// active. The conditional update makes the claim safe against competing
// workers; a lost race simply returns no job.
func (q *Queue) claim(jobType string) (*models.Job, error) {
	var job models.Job
	err := q.db.
		Where("type = ? AND status IN ? AND run_at <= ?",
			jobType, []string{models.JobStatusWaiting, models.JobStatusDelayed}, time.Now()).
		Order("priority DESC, id ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	claimed := q.db.Model(&models.Job{}).
		Where("id = ? AND status IN ?", job.ID, []string{models.JobStatusWaiting, models.JobStatusDelayed}).
		Updates(map[string]interface{}{
			"status":     models.JobStatusActive,
			"started_at": &now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if claimed.Error != nil {
		return nil, claimed.Error
	}
	if claimed.RowsAffected == 0 {
		// Another worker won the claim.
		return nil, nil
	}

	job.Status = models.JobStatusActive
	job.Attempts++
	return &job, nil
}

func (q *Queue) run(ctx context.Context, job *models.Job, handler Handler) {
	err := handler(ctx, []byte(job.Payload))
	now := time.Now()
	if err == nil {
		q.db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":      models.JobStatusCompleted,
			"finished_at": &now,
			"last_error":  "",
		})
		return
	}

	if job.Attempts >= job.MaxAttempts {
		log.Printf("jobqueue: %s job %s failed permanently after %d attempts: %v",
			job.Type, job.JobID, job.Attempts, err)
		q.db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":      models.JobStatusFailed,
			"finished_at": &now,
			"last_error":  err.Error(),
		})
		return
	}

	delay := q.retry.Delay(job.Attempts)
	log.Printf("jobqueue: %s job %s failed (attempt %d/%d), retrying in %s: %v",
		job.Type, job.JobID, job.Attempts, job.MaxAttempts, delay, err)
	q.db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":     models.JobStatusDelayed,
		"run_at":     now.Add(delay),
		"last_error": err.Error(),
	})
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

func (q *Queue) Stats() (*Stats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := q.db.Model(&models.Job{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, row := range rows {
		switch row.Status {
		case models.JobStatusWaiting:
			stats.Waiting = row.Count
		case models.JobStatusActive:
			stats.Active = row.Count
		case models.JobStatusCompleted:
			stats.Completed = row.Count
		case models.JobStatusFailed:
			stats.Failed = row.Count
		case models.JobStatusDelayed:
			stats.Delayed = row.Count
		}
	}
	return stats, nil
}

// ScheduleRecurring enqueues a low-priority job of the given type now and
// then on every interval, skipping enqueue while a previous run is still
// queued. Used for the daily cleanup job.
func (q *Queue) ScheduleRecurring(ctx context.Context, jobType string, interval time.Duration) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		q.enqueueIfIdle(jobType)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stop:
				return
			case <-ticker.C:
				q.enqueueIfIdle(jobType)
			}
		}
	}()
}

func (q *Queue) enqueueIfIdle(jobType string) {
	var pending int64
	err := q.db.Model(&models.Job{}).
		Where("type = ? AND status IN ?",
			jobType, []string{models.JobStatusWaiting, models.JobStatusDelayed, models.JobStatusActive}).
		Count(&pending).Error
	if err != nil {
		log.Printf("jobqueue: checking pending %s jobs failed: %v", jobType, err)
		return
	}
	if pending > 0 {
		return
	}
	if _, err := q.Enqueue(jobType, map[string]interface{}{}, WithPriority(-10)); err != nil {
		log.Printf("jobqueue: scheduling %s failed: %v", jobType, err)
	}
}
