package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// Task names of the ingestion entry points.
const (
	TaskIngest         = "ingest_perplexity"
	TaskIngestAllUsers = "ingest_perplexity_all_users"
)

// Ingestor is the orchestrator the ingestion tasks delegate to.
type Ingestor interface {
	Ingest(ctx context.Context, task ports.TaskContext, req domain.IngestRequest) (domain.IngestResult, error)
	IngestAllUsers(ctx context.Context, task ports.TaskContext) (domain.AllUsersResult, error)
}

// RegisterIngestion binds both ingestion tasks to in.
func RegisterIngestion(q *Queue, in Ingestor) {
	q.Register(TaskIngest, func(ctx context.Context, task *Task) (any, error) {
		var req domain.IngestRequest
		if err := task.Decode(&req); err != nil {
			return nil, err
		}
		result, err := in.Ingest(ctx, task, req)
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	q.Register(TaskIngestAllUsers, func(ctx context.Context, task *Task) (any, error) {
		result, err := in.IngestAllUsers(ctx, task)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// Client exposes the queue through the ingestion ports.
type Client struct {
	queue *Queue
}

var (
	_ ports.Dispatcher    = (*Client)(nil)
	_ ports.SubRunner     = (*Client)(nil)
	_ ports.TaskInspector = (*Client)(nil)
)

// NewClient wraps q.
func NewClient(q *Queue) *Client {
	return &Client{queue: q}
}

// DispatchIngest enqueues a single-user run.
func (c *Client) DispatchIngest(ctx context.Context, req domain.IngestRequest) (string, error) {
	return c.queue.Enqueue(ctx, TaskIngest, req)
}

// DispatchIngestAllUsers enqueues the fan-out run.
func (c *Client) DispatchIngestAllUsers(ctx context.Context) (string, error) {
	return c.queue.Enqueue(ctx, TaskIngestAllUsers, struct{}{})
}

// IngestUser dispatches a run for userID and waits up to timeout for its result.
func (c *Client) IngestUser(ctx context.Context, userID uint, timeout time.Duration) (domain.IngestResult, error) {
	id, err := c.DispatchIngest(ctx, domain.IngestRequest{UserID: &userID})
	if err != nil {
		return domain.IngestResult{}, err
	}

	state, err := c.queue.Wait(ctx, id, timeout)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if state.Status != StatusSuccess {
		return domain.IngestResult{}, fmt.Errorf("task %s %s: %s", id, state.Status, state.Error)
	}

	var result domain.IngestResult
	if err := json.Unmarshal(state.Result, &result); err != nil {
		return domain.IngestResult{}, fmt.Errorf("decode task %s result: %w", id, err)
	}
	return result, nil
}

// State implements ports.TaskInspector.
func (c *Client) State(ctx context.Context, id string) (ports.TaskState, error) {
	return c.queue.State(ctx, id)
}
