package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"FeedIngestor/internal/ports"
)

// Task statuses, as reported to inspectors.
const (
	StatusPending  = "PENDING"
	StatusStarted  = "STARTED"
	StatusProgress = "PROGRESS"
	StatusRetry    = "RETRY"
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
)

// ErrNotFound is returned for task ids no backend knows about.
var ErrNotFound = errors.New("task not found")

// Finished reports whether status is terminal.
func Finished(status string) bool {
	return status == StatusSuccess || status == StatusFailure
}

// Backend keeps the last known state of every task.
type Backend interface {
	Save(ctx context.Context, state ports.TaskState) error
	Load(ctx context.Context, id string) (ports.TaskState, error)
}

// MemoryBackend keeps states in process.
type MemoryBackend struct {
	mu     sync.RWMutex
	states map[string]ports.TaskState
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{states: map[string]ports.TaskState{}}
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, state ports.TaskState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[state.ID] = state
	return nil
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, id string) (ports.TaskState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	state, ok := b.states[id]
	if !ok {
		return ports.TaskState{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return state, nil
}

const redisKeyPrefix = "feedingestor:task:"

// RedisBackend stores states as JSON values that expire after ttl.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, state ports.TaskState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal task state: %w", err)
	}
	if err := b.client.Set(ctx, redisKeyPrefix+state.ID, data, b.ttl).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", state.ID, err)
	}
	return nil
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, id string) (ports.TaskState, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.TaskState{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ports.TaskState{}, fmt.Errorf("load task %s: %w", id, err)
	}

	var state ports.TaskState
	if err := json.Unmarshal(data, &state); err != nil {
		return ports.TaskState{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return state, nil
}
