package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltparts/storefront/jobs"
	_ "github.com/voltparts/storefront/testing"
)

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskIdempotencyCleanup, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskIdempotencyCleanup, task.Type())

	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 2*time.Hour, payload.Retention)

	_, err = BuildTask(jobs.TaskOrderCreated, 0)
	assert.ErrorIs(t, err, ErrUnsupportedJob)
}

func TestNilCLIIsRejected(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskIdempotencyCleanup, 0)
	assert.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	assert.Error(t, err)
}
