package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reunite-app/api-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueue(t *testing.T) (*Queue, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.RefreshToken{}, &models.Notification{}, &models.Job{},
	))

	q := NewQueue(db)
	q.poll = 10 * time.Millisecond
	q.retry = RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
	return q, db
}

func markRunnable(t *testing.T, db *gorm.DB, jobID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", jobID).
		Update("run_at", time.Now().Add(-time.Second)).Error)
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t)
	job, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusWaiting, job.Status)
	assert.Equal(t, TypeFindMatches, job.Type)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.NotEmpty(t, job.JobID)
	assert.JSONEq(t, `{"report_id":7}`, string(job.Payload))
}

func TestEnqueueWithDelay(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t)
	job, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7}, WithDelay(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusDelayed, job.Status)
	assert.True(t, job.RunAt.After(time.Now().Add(30*time.Minute)))

	// Not runnable until its run_at passes.
	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimMovesJobToActive(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	job, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, models.JobStatusActive, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	var stored models.Job
	require.NoError(t, db.First(&stored, job.ID).Error)
	assert.Equal(t, models.JobStatusActive, stored.Status)
	assert.NotNil(t, stored.StartedAt)

	// Already active: nothing left to claim.
	second, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestClaimHonorsPriority(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t)
	_, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 1})
	require.NoError(t, err)
	urgent, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 2}, WithPriority(10))
	require.NoError(t, err)

	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, urgent.ID, claimed.ID)
}

func TestRunSuccessCompletesJob(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	_, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	var got PipelinePayload
	q.run(context.Background(), claimed, func(_ context.Context, payload []byte) error {
		return json.Unmarshal(payload, &got)
	})
	assert.EqualValues(t, 7, got.ReportID)

	var stored models.Job
	require.NoError(t, db.First(&stored, claimed.ID).Error)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
	assert.Empty(t, stored.LastError)
}

func TestRunFailureDelaysWithBackoff(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	_, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	q.run(context.Background(), claimed, func(context.Context, []byte) error {
		return errors.New("face service unavailable")
	})

	var stored models.Job
	require.NoError(t, db.First(&stored, claimed.ID).Error)
	assert.Equal(t, models.JobStatusDelayed, stored.Status)
	assert.Equal(t, "face service unavailable", stored.LastError)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.StartedAt)
	assert.False(t, stored.RunAt.Before(*stored.StartedAt))
}

func TestJobFailsPermanentlyAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	job, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	failing := func(context.Context, []byte) error { return errors.New("still broken") }
	for attempt := 1; attempt <= q.retry.MaxAttempts; attempt++ {
		markRunnable(t, db, job.ID)
		claimed, err := q.claim(TypeFindMatches)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d should be claimable", attempt)
		q.run(context.Background(), claimed, failing)
	}

	var stored models.Job
	require.NoError(t, db.First(&stored, job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, "still broken", stored.LastError)
	assert.NotNil(t, stored.FinishedAt)

	// Terminal: nothing left to claim even when runnable.
	markRunnable(t, db, job.ID)
	claimed, err := q.claim(TypeFindMatches)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 30 * time.Second,
		MaxDelay:     10 * time.Minute,
		Multiplier:   2.0,
	}

	assert.Equal(t, 30*time.Second, cfg.Delay(0))
	assert.Equal(t, 30*time.Second, cfg.Delay(1))
	assert.Equal(t, time.Minute, cfg.Delay(2))
	assert.Equal(t, 2*time.Minute, cfg.Delay(3))
	assert.Equal(t, 10*time.Minute, cfg.Delay(20))
}

func TestStats(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	first, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 1})
	require.NoError(t, err)
	for i := 2; i <= 3; i++ {
		_, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: uint(i)})
		require.NoError(t, err)
	}
	_, err = q.Enqueue(TypeFindMatches, PipelinePayload{}, WithDelay(time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", first.ID).
		Update("status", models.JobStatusFailed).Error)

	stats, err := q.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Waiting)
	assert.EqualValues(t, 1, stats.Delayed)
	assert.EqualValues(t, 1, stats.Failed)
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.Completed)
}

func TestEnqueueIfIdleSkipsPendingDuplicates(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)

	q.enqueueIfIdle(TypeCleanupOldData)
	q.enqueueIfIdle(TypeCleanupOldData)

	var count int64
	db.Model(&models.Job{}).Where("type = ?", TypeCleanupOldData).Count(&count)
	assert.EqualValues(t, 1, count)

	// Once the previous run finished, a new one may be scheduled.
	require.NoError(t, db.Model(&models.Job{}).
		Where("type = ?", TypeCleanupOldData).
		Update("status", models.JobStatusCompleted).Error)
	q.enqueueIfIdle(TypeCleanupOldData)

	db.Model(&models.Job{}).Where("type = ?", TypeCleanupOldData).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestWorkerProcessesEnqueuedJob(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)

	var handled atomic.Int32
	q.Register(TypeFindMatches, 2, func(context.Context, []byte) error {
		handled.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	job, err := q.Enqueue(TypeFindMatches, PipelinePayload{ReportID: 7})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var stored models.Job
		if err := db.First(&stored, job.ID).Error; err != nil {
			return false
		}
		return stored.Status == models.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 1, handled.Load())
}

func TestCleanupHandler(t *testing.T) {
	t.Parallel()

	q, db := newTestQueue(t)
	RegisterCleanupHandler(q, db)
	reg, ok := q.handlers[TypeCleanupOldData]
	require.True(t, ok)

	old := time.Now().Add(-60 * 24 * time.Hour)
	stale := models.Notification{Title: "old", Type: models.NotificationTypeSystem, Read: true}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&stale).Update("created_at", old).Error)
	unreadOld := models.Notification{Title: "unread", Type: models.NotificationTypeSystem}
	require.NoError(t, db.Create(&unreadOld).Error)
	require.NoError(t, db.Model(&unreadOld).Update("created_at", old).Error)
	fresh := models.Notification{Title: "fresh", Type: models.NotificationTypeSystem, Read: true}
	require.NoError(t, db.Create(&fresh).Error)

	expired := models.RefreshToken{UserID: 1, Token: "a", ExpirationDate: time.Now().Add(-time.Hour)}
	valid := models.RefreshToken{UserID: 1, Token: "b", ExpirationDate: time.Now().Add(time.Hour)}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&valid).Error)

	finishedLongAgo := time.Now().Add(-14 * 24 * time.Hour)
	oldJob := models.Job{
		JobID: uuid.New().String(), Type: TypeFindMatches,
		Status: models.JobStatusCompleted, FinishedAt: &finishedLongAgo,
	}
	require.NoError(t, db.Create(&oldJob).Error)

	require.NoError(t, reg.handler(context.Background(), nil))

	var notifCount int64
	db.Unscoped().Model(&models.Notification{}).Count(&notifCount)
	assert.EqualValues(t, 2, notifCount)

	var tokens []models.RefreshToken
	require.NoError(t, db.Unscoped().Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "b", tokens[0].Token)

	var jobCount int64
	db.Model(&models.Job{}).Where("id = ?", oldJob.ID).Count(&jobCount)
	assert.Zero(t, jobCount)
}
