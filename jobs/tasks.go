package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voltparts/storefront/internal/checkout"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderCreated follows up on an order accepted by PayPal.
	TaskOrderCreated = "checkout:order_created"
	// TaskIdempotencyCleanup prunes expired checkout idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewOrderCreatedTask constructs an Asynq task for evt.
func NewOrderCreatedTask(evt checkout.OrderCreated) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCreated, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
