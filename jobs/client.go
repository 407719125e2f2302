package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// manualUniqueness stops repeated on-demand requests from stacking up while a
// run is still queued.
const manualUniqueness = 15 * time.Minute

// Client enqueues on-demand runs of the maintenance jobs.
type Client struct {
	client *asynq.Client
	now    func() time.Time
}

// NewClient constructs a client over redisOpts.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, fmt.Errorf("jobs: redis address required")
	}
	return &Client{client: asynq.NewClient(redisOpts), now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnqueueLedgerIntegrity requests an integrity check outside the nightly
// schedule. A second request while one is pending returns asynq.ErrDuplicateTask.
func (c *Client) EnqueueLedgerIntegrity(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewLedgerIntegrityTask(c.now())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(manualUniqueness))
}

// EnqueueIdempotencyCleanup requests a key purge. Zero retention defers to the
// worker's configured window.
func (c *Client) EnqueueIdempotencyCleanup(ctx context.Context, retention time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewIdempotencyCleanupTask(retention)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(manualUniqueness))
}

// Close releases the underlying redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
