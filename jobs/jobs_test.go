package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/checkout"
	jobmetrics "github.com/voltparts/storefront/internal/jobs"
	"github.com/voltparts/storefront/internal/rbac"
	"github.com/voltparts/storefront/internal/roles"
	"github.com/voltparts/storefront/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			id := opt.Value().(string)
			if e.seen[id] {
				return nil, asynq.ErrTaskIDConflict
			}
			e.seen[id] = true
		}
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Queue: QueueDefault, Type: task.Type()}, nil
}

func (e *recordingEnqueuer) Close() error { return nil }

func TestClientEnqueuesOrderCreatedOnce(t *testing.T) {
	enq := &recordingEnqueuer{seen: map[string]bool{}}
	client := NewClientWith(enq)
	evt := checkout.OrderCreated{OrderID: "ORDER-1", UserID: 4, Amount: 12.5, Currency: "EUR", Items: 2}

	require.NoError(t, client.OrderCreated(context.Background(), evt))
	require.NoError(t, client.OrderCreated(context.Background(), evt))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskOrderCreated, enq.tasks[0].Type())

	var decoded checkout.OrderCreated
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &decoded))
	assert.Equal(t, evt, decoded)
}

type auditLog struct {
	entries []shared.AuditLog
	err     error
}

func (a *auditLog) Record(_ context.Context, log shared.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, log)
	return nil
}

func TestOrderCreatedJobAudits(t *testing.T) {
	audit := &auditLog{}
	job := NewOrderCreatedJob(audit, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	task, err := NewOrderCreatedTask(checkout.OrderCreated{OrderID: "ORDER-7", UserID: 9, Amount: 40, Currency: "USD", Items: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, "order.created", entry.Action)
	assert.Equal(t, "ORDER-7", entry.EntityID)
	assert.Equal(t, int64(9), entry.ActorID)
	assert.Equal(t, fixed, entry.At)
	assert.Equal(t, "USD", entry.Meta["currency"])
}

func TestOrderCreatedJobErrors(t *testing.T) {
	job := NewOrderCreatedJob(&auditLog{}, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskOrderCreated, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	boom := errors.New("db down")
	job = NewOrderCreatedJob(&auditLog{err: boom}, quietLogger(), nil)
	task, err := NewOrderCreatedTask(checkout.OrderCreated{OrderID: "ORDER-8"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type cleaner struct{ got time.Duration }

func (c *cleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	c.got = olderThan
	return nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	store := &cleaner{}
	job := NewIdempotencyCleanupJob(store, quietLogger(), nil)

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, store.got)

	task, err = NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.Hour, store.got)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func healthRequest(t *testing.T, h *Handler, role roles.Role) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set("Accept", "application/json")
	authSess := auth.NewSession()
	authSess.Resolve(&auth.Identity{ID: 1}, &auth.Profile{UserID: 1, Role: string(role)})
	req = req.WithContext(auth.WithSession(req.Context(), authSess))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1}}, quietLogger(), rbac.Middleware{})

	rec := healthRequest(t, h, roles.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = healthRequest(t, h, roles.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Failed: 1}, body)

	down := NewHandler(fakeInspector{err: errors.New("redis down")}, quietLogger(), rbac.Middleware{})
	rec = healthRequest(t, down, roles.RoleAdmin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
