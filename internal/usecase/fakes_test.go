package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

type memoryStore struct {
	mu         sync.Mutex
	source     *domain.DataSource
	categories []domain.UserCategory
	users      []domain.User
	items      map[string]domain.FeedItem
	jobs       []domain.IngestionJob
	sessions   int
	open       int
	upsertErr  error
	batchErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]domain.FeedItem{}}
}

func (s *memoryStore) Session(ctx context.Context, fn func(repos ports.Repositories) error) error {
	s.mu.Lock()
	s.sessions++
	s.open++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.open--
		s.mu.Unlock()
	}()

	return fn(ports.Repositories{
		DataSources: memorySources{s},
		Categories:  memoryCategories{s},
		Items:       memoryItems{s},
		Jobs:        memoryJobs{s},
	})
}

func (s *memoryStore) job(i int) domain.IngestionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[i]
}

type memorySources struct{ s *memoryStore }

func (r memorySources) GetOrCreate(_ context.Context, defaults domain.DataSource) (domain.DataSource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.source == nil {
		created := defaults
		created.ID = 1
		r.s.source = &created
	}
	return *r.s.source, nil
}

func (r memorySources) Touch(_ context.Context, _ uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.source.LastUsed = &at
	return nil
}

type memoryCategories struct{ s *memoryStore }

func (r memoryCategories) ActiveForUser(_ context.Context, userID uint) ([]domain.UserCategory, error) {
	var out []domain.UserCategory
	for _, c := range r.s.categories {
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memoryCategories) UsersWithActiveCategories(context.Context) ([]domain.User, error) {
	return r.s.users, nil
}

type memoryItems struct{ s *memoryStore }

func (r memoryItems) Batch(_ context.Context, fn func(w ports.ItemWriter) error) error {
	if r.s.batchErr != nil {
		return r.s.batchErr
	}
	return fn(r)
}

func (r memoryItems) Upsert(_ context.Context, item domain.FeedItem) (bool, error) {
	if r.s.upsertErr != nil {
		return false, r.s.upsertErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := fmt.Sprintf("%s|%d", item.Title, item.DataSourceID)
	existing, ok := r.s.items[key]
	if !ok {
		r.s.items[key] = item
		return true, nil
	}
	if item.Summary != "" {
		existing.Summary = item.Summary
	}
	if item.URL != "" {
		existing.URL = item.URL
	}
	r.s.items[key] = existing
	return false, nil
}

type memoryJobs struct{ s *memoryStore }

func (r memoryJobs) Create(_ context.Context, job *domain.IngestionJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job.ID = uint(len(r.s.jobs) + 1)
	r.s.jobs = append(r.s.jobs, *job)
	return nil
}

func (r memoryJobs) Complete(_ context.Context, id uint, counts domain.Counts, at time.Time) error {
	return r.finish(id, func(job *domain.IngestionJob) {
		job.Status = domain.JobStatusCompleted
		job.ItemsCreated = counts.Created
		job.ItemsUpdated = counts.Updated
		job.ItemsProcessed = counts.Processed
		job.CompletedAt = &at
	})
}

func (r memoryJobs) Fail(_ context.Context, id uint, message string, at time.Time) error {
	return r.finish(id, func(job *domain.IngestionJob) {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &at
	})
}

func (r memoryJobs) finish(id uint, apply func(*domain.IngestionJob)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job := &r.s.jobs[id-1]
	if job.Status != domain.JobStatusRunning {
		return errors.New("job already finished")
	}
	apply(job)
	return nil
}

type recordingTask struct {
	progress []any
	retries  []error
}

var errRetryRequested = errors.New("retry requested")

func (t *recordingTask) ID() string { return "task-1" }

func (t *recordingTask) ReportProgress(meta any) { t.progress = append(t.progress, meta) }

func (t *recordingTask) Retry(cause error, _ time.Duration, _ int) error {
	t.retries = append(t.retries, cause)
	return fmt.Errorf("%w: %v", errRetryRequested, cause)
}

type scriptedProvider struct {
	content map[string]string
	failOn  string
	calls   []string
}

func (p *scriptedProvider) Query(_ context.Context, query, _ string) (*domain.ChatResponse, error) {
	p.calls = append(p.calls, query)
	if query == p.failOn {
		return nil, errors.New("boom")
	}
	text, ok := p.content[query]
	if !ok {
		return nil, nil
	}
	return &domain.ChatResponse{Choices: []domain.ChatChoice{{Message: domain.ChatMessage{Role: "assistant", Content: text}}}}, nil
}

type scriptedSubRunner struct {
	results map[uint]domain.IngestResult
	errs    map[uint]error
	calls   []uint
}

func (r *scriptedSubRunner) IngestUser(_ context.Context, userID uint, _ time.Duration) (domain.IngestResult, error) {
	r.calls = append(r.calls, userID)
	if err := r.errs[userID]; err != nil {
		return domain.IngestResult{}, err
	}
	return r.results[userID], nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *countingMetrics) Count(name string, value int64, _ ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[name] += value
}

func testSource() domain.DataSource {
	return domain.DataSource{
		Name:               "perplexity",
		DisplayName:        "Perplexity AI",
		BaseURL:            "https://api.perplexity.ai/chat/completions",
		RateLimitPerMinute: 60,
		IsActive:           true,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func uintPtr(v uint) *uint { return &v }
