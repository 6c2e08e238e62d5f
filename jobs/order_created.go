package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voltparts/storefront/internal/checkout"
	jobmetrics "github.com/voltparts/storefront/internal/jobs"
	"github.com/voltparts/storefront/internal/shared"
)

// Auditor persists audit trail entries.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OrderCreatedJob records created orders in the audit trail and metrics.
type OrderCreatedJob struct {
	Audit   Auditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOrderCreatedJob initialises the order follow-up handler.
func NewOrderCreatedJob(audit Auditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderCreatedJob {
	return &OrderCreatedJob{
		Audit:   audit,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskOrderCreated tasks.
func (j *OrderCreatedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("order created: handler not configured")
	}
	var evt checkout.OrderCreated
	if err := json.Unmarshal(t.Payload(), &evt); err != nil || evt.OrderID == "" {
		return fmt.Errorf("order created: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskOrderCreated)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.String("order_id", evt.OrderID),
		slog.Int64("user_id", evt.UserID),
	)
	if j.Audit != nil {
		entry := shared.AuditLog{
			ActorID:  evt.UserID,
			Action:   "order.created",
			Entity:   "paypal_order",
			EntityID: evt.OrderID,
			Meta: map[string]any{
				"amount":   evt.Amount,
				"currency": evt.Currency,
				"items":    evt.Items,
			},
			At: j.clock(),
		}
		if err := j.Audit.Record(ctx, entry); err != nil {
			logger.Error("audit order", slog.Any("error", err))
			return err
		}
	}
	j.Metrics.AddOrder(evt.Currency, evt.Amount)
	logger.Info("order created processed",
		slog.Float64("amount", evt.Amount),
		slog.String("currency", evt.Currency),
		slog.Int("items", evt.Items))
	return nil
}

func (j *OrderCreatedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
