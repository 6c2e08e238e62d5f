package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/voltparts/storefront/internal/jobs"
)

// DefaultIdempotencyRetention is how long checkout keys are kept.
const DefaultIdempotencyRetention = 72 * time.Hour

// Cleaner removes idempotency keys older than a cutoff.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob prunes the idempotency_keys table.
type IdempotencyCleanupJob struct {
	Store   Cleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store Cleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup: bad payload: %w", asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultIdempotencyRetention
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	err := j.Store.Cleanup(ctx, payload.Retention)
	if err != nil {
		j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
	} else {
		j.Logger.Info("idempotency keys pruned", slog.Duration("retention", payload.Retention))
	}
	return tracker.End(err)
}
