package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"FeedIngestor/internal/ports"
)

const (
	taskTopic           = "ingestion.tasks"
	defaultWorkers      = 4
	defaultPollInterval = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when a task does not finish within the wait limit.
	ErrTimeout = errors.New("timed out waiting for task")
	// ErrUnknownTask is returned when enqueuing a name without a handler.
	ErrUnknownTask = errors.New("task is not registered")
)

// RetryError asks the queue to run the task again after Delay.
type RetryError struct {
	Cause error
	Delay time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.Delay, e.Cause)
}

func (e *RetryError) Unwrap() error {
	return e.Cause
}

// Handler executes one task attempt. The returned value becomes the task result.
type Handler func(ctx context.Context, task *Task) (any, error)

// envelope is the message body carried over the pub/sub.
type envelope struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Attempt int             `json:"attempt"`
	Payload json.RawMessage `json:"payload"`
}

// Options tunes the queue.
type Options struct {
	Workers      int
	Buffer       int64
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Queue runs named tasks published over an in-process watermill pub/sub and
// records their states in a Backend.
type Queue struct {
	pubsub       *gochannel.GoChannel
	backend      Backend
	logger       *slog.Logger
	slots        chan struct{}
	pollInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
	wg       sync.WaitGroup
}

// New builds a queue over backend.
func New(backend Backend, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: opts.Buffer},
		watermill.NewSlogLogger(opts.Logger.With("component", "watermill")),
	)

	return &Queue{
		pubsub:       pubsub,
		backend:      backend,
		logger:       opts.Logger,
		slots:        make(chan struct{}, opts.Workers),
		pollInterval: opts.PollInterval,
		handlers:     map[string]Handler{},
	}
}

// Register binds a handler to name.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

func (q *Queue) handler(name string) (Handler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[name]
	return h, ok
}

// Enqueue records a pending task and publishes it for the workers.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	if _, ok := q.handler(name); !ok {
		return "", fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", name, err)
	}

	env := envelope{ID: uuid.NewString(), Name: name, Payload: raw}
	if err := q.save(ctx, env, StatusPending, nil); err != nil {
		return "", err
	}
	if err := q.publish(env); err != nil {
		return "", err
	}
	return env.ID, nil
}

func (q *Queue) publish(env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", env.ID, err)
	}
	if err := q.pubsub.Publish(taskTopic, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		return fmt.Errorf("publish task %s: %w", env.ID, err)
	}
	return nil
}

// Start subscribes and consumes tasks in the background until ctx is done.
// Tasks enqueued before Start are not delivered.
func (q *Queue) Start(ctx context.Context) error {
	messages, err := q.pubsub.Subscribe(ctx, taskTopic)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.consume(ctx, messages)
	}()
	return nil
}

// Run consumes tasks until ctx is done, then waits for running ones.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	q.Drain()
	return nil
}

// Drain blocks until the consumer, running tasks and pending retries exit.
func (q *Queue) Drain() {
	q.wg.Wait()
}

// consume acks messages on receipt so a task waiting on other tasks never
// blocks delivery.
func (q *Queue) consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			msg.Ack()

			var env envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				q.logger.Error("drop malformed task message", "message_id", msg.UUID, "error", err)
				continue
			}

			select {
			case q.slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				defer func() { <-q.slots }()
				q.execute(ctx, env)
			}()
		}
	}
}

// execute runs one attempt and schedules the next one when asked to.
func (q *Queue) execute(ctx context.Context, env envelope) {
	retry := q.attempt(ctx, env)
	if retry == nil {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(retry.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}

		env.Attempt++
		if err := q.publish(env); err != nil {
			q.logger.Error("republish task", "task_id", env.ID, "error", err)
			q.fail(context.WithoutCancel(ctx), env, err)
		}
	}()
}

// attempt runs the handler once and records the outcome. It returns the
// retry request, if any.
func (q *Queue) attempt(ctx context.Context, env envelope) *RetryError {
	log := q.logger.With("task_id", env.ID, "task", env.Name, "attempt", env.Attempt)

	h, ok := q.handler(env.Name)
	if !ok {
		q.fail(ctx, env, fmt.Errorf("%s: %w", env.Name, ErrUnknownTask))
		return nil
	}
	if err := q.save(ctx, env, StatusStarted, nil); err != nil {
		log.Warn("record task start", "error", err)
	}

	task := &Task{env: env, queue: q, ctx: ctx}
	result, err := safeCall(ctx, h, task)

	// States must land even if the run context was cancelled meanwhile.
	saveCtx := context.WithoutCancel(ctx)

	var retry *RetryError
	switch {
	case err == nil:
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			q.fail(saveCtx, env, fmt.Errorf("marshal result: %w", mErr))
			return nil
		}
		if sErr := q.save(saveCtx, env, StatusSuccess, func(s *ports.TaskState) { s.Result = raw }); sErr != nil {
			log.Error("record task success", "error", sErr)
		}
		log.Info("task succeeded")
		return nil
	case errors.As(err, &retry):
		if sErr := q.save(saveCtx, env, StatusRetry, func(s *ports.TaskState) { s.Error = retry.Cause.Error() }); sErr != nil {
			log.Error("record task retry", "error", sErr)
		}
		log.Warn("task will be retried", "delay", retry.Delay, "error", retry.Cause)
		return retry
	default:
		q.fail(saveCtx, env, err)
		return nil
	}
}

func (q *Queue) fail(ctx context.Context, env envelope, cause error) {
	q.logger.Error("task failed", "task_id", env.ID, "task", env.Name, "attempt", env.Attempt, "error", cause)
	if err := q.save(ctx, env, StatusFailure, func(s *ports.TaskState) { s.Error = cause.Error() }); err != nil {
		q.logger.Error("record task failure", "task_id", env.ID, "error", err)
	}
}

func safeCall(ctx context.Context, h Handler, task *Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, task)
}

func (q *Queue) save(ctx context.Context, env envelope, status string, mutate func(*ports.TaskState)) error {
	state := ports.TaskState{
		ID:      env.ID,
		Name:    env.Name,
		Status:  status,
		Attempt: env.Attempt,
		Updated: time.Now().UTC(),
	}
	if mutate != nil {
		mutate(&state)
	}
	if err := q.backend.Save(ctx, state); err != nil {
		return fmt.Errorf("save task %s state: %w", env.ID, err)
	}
	return nil
}

// State implements ports.TaskInspector.
func (q *Queue) State(ctx context.Context, id string) (ports.TaskState, error) {
	return q.backend.Load(ctx, id)
}

// Wait polls until task id finishes or timeout elapses.
func (q *Queue) Wait(ctx context.Context, id string, timeout time.Duration) (ports.TaskState, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		state, err := q.backend.Load(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			if ctx.Err() != nil {
				return ports.TaskState{}, fmt.Errorf("task %s: %w", id, ErrTimeout)
			}
			return ports.TaskState{}, err
		}
		if err == nil && Finished(state.Status) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return ports.TaskState{}, fmt.Errorf("task %s after %s: %w", id, timeout, ErrTimeout)
		case <-ticker.C:
		}
	}
}

// RunInline executes task name in the calling goroutine, sleeping between
// retries exactly like the workers do.
func (q *Queue) RunInline(ctx context.Context, name string, payload any) (ports.TaskState, error) {
	if _, ok := q.handler(name); !ok {
		return ports.TaskState{}, fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ports.TaskState{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	env := envelope{ID: uuid.NewString(), Name: name, Payload: raw}
	if err := q.save(ctx, env, StatusPending, nil); err != nil {
		return ports.TaskState{}, err
	}

	for {
		retry := q.attempt(ctx, env)
		if retry == nil {
			return q.backend.Load(context.WithoutCancel(ctx), env.ID)
		}

		timer := time.NewTimer(retry.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ports.TaskState{}, ctx.Err()
		}
		env.Attempt++
	}
}

// Close shuts the pub/sub down.
func (q *Queue) Close() error {
	return q.pubsub.Close()
}

// Task is the execution context handed to handlers.
type Task struct {
	env   envelope
	queue *Queue
	ctx   context.Context
}

var _ ports.TaskContext = (*Task)(nil)

// ID returns the task id shared by all attempts.
func (t *Task) ID() string { return t.env.ID }

// Attempt is 0 on the first run and grows with each retry.
func (t *Task) Attempt() int { return t.env.Attempt }

// Decode unmarshals the task payload into v.
func (t *Task) Decode(v any) error {
	if err := json.Unmarshal(t.env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.env.Name, err)
	}
	return nil
}

// ReportProgress records meta as PROGRESS info; failures are only logged.
func (t *Task) ReportProgress(meta any) {
	raw, err := json.Marshal(meta)
	if err != nil {
		t.queue.logger.Warn("marshal progress", "task_id", t.env.ID, "error", err)
		return
	}
	err = t.queue.save(t.ctx, t.env, StatusProgress, func(s *ports.TaskState) { s.Meta = raw })
	if err != nil {
		t.queue.logger.Warn("record progress", "task_id", t.env.ID, "error", err)
	}
}

// Retry asks for another attempt after delay unless maxRetries retries
// already happened, in which case cause is returned unchanged.
func (t *Task) Retry(cause error, delay time.Duration, maxRetries int) error {
	if t.env.Attempt >= maxRetries {
		return cause
	}
	return &RetryError{Cause: cause, Delay: delay}
}
