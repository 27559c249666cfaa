package ports

import (
	"context"
	"encoding/json"
	"time"

	"FeedIngestor/internal/domain"
)

// Store hands out a unit of work bound to one connection for the duration of fn.
type Store interface {
	Session(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories groups the repositories of one session.
type Repositories struct {
	DataSources DataSourceRepository
	Categories  CategoryRepository
	Items       ItemRepository
	Jobs        JobRepository
}

// DataSourceRepository resolves provider identity records.
type DataSourceRepository interface {
	// GetOrCreate returns the source named defaults.Name, inserting defaults if absent.
	GetOrCreate(ctx context.Context, defaults domain.DataSource) (domain.DataSource, error)
	Touch(ctx context.Context, id uint, at time.Time) error
}

// CategoryRepository reads user interest areas.
type CategoryRepository interface {
	ActiveForUser(ctx context.Context, userID uint) ([]domain.UserCategory, error)
	UsersWithActiveCategories(ctx context.Context) ([]domain.User, error)
}

// ItemRepository persists feed items in batches committed together.
type ItemRepository interface {
	Batch(ctx context.Context, fn func(w ItemWriter) error) error
}

// ItemWriter performs create-or-update of one item inside a batch.
type ItemWriter interface {
	// Upsert inserts item unless (title, data source) exists, in which case
	// non-empty summary/url replace the stored ones. created reports which path ran.
	Upsert(ctx context.Context, item domain.FeedItem) (created bool, err error)
}

// JobRepository tracks ingestion job lifecycle.
type JobRepository interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	Complete(ctx context.Context, id uint, counts domain.Counts, at time.Time) error
	Fail(ctx context.Context, id uint, message string, at time.Time) error
}

// ResponseCache stores raw provider payloads keyed by fingerprint.
type ResponseCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
}

// ContentProvider queries the external API. A nil response with nil error
// means the provider was unavailable for this query.
type ContentProvider interface {
	Query(ctx context.Context, query, model string) (*domain.ChatResponse, error)
}

// TaskContext is the surrounding task execution, able to take progress and
// schedule a delayed re-attempt.
type TaskContext interface {
	ID() string
	ReportProgress(meta any)
	// Retry returns the error the handler must return to be re-run after delay,
	// or cause itself once maxRetries is exhausted.
	Retry(cause error, delay time.Duration, maxRetries int) error
}

// SubRunner runs a single-user ingestion and waits for its result.
type SubRunner interface {
	IngestUser(ctx context.Context, userID uint, timeout time.Duration) (domain.IngestResult, error)
}

// Dispatcher enqueues ingestion runs for asynchronous execution.
type Dispatcher interface {
	DispatchIngest(ctx context.Context, req domain.IngestRequest) (string, error)
	DispatchIngestAllUsers(ctx context.Context) (string, error)
}

// TaskState is the last known state of a dispatched task.
type TaskState struct {
	ID      string          `json:"task_id"`
	Name    string          `json:"name,omitempty"`
	Status  string          `json:"status"`
	Attempt int             `json:"attempt"`
	Meta    json.RawMessage `json:"info,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Updated time.Time       `json:"updated_at"`
}

// TaskInspector looks up task states.
type TaskInspector interface {
	State(ctx context.Context, id string) (TaskState, error)
}

// Notifier streams job outcomes to Telegram or other channels.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Metrics receives pipeline counters.
type Metrics interface {
	Count(name string, value int64, tags ...string)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Reports serves the read side of the admin API.
type Reports interface {
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.IngestionJob, error)
	GetJob(ctx context.Context, id uint) (domain.IngestionJob, error)
	ListFeedItems(ctx context.Context, filter domain.FeedItemFilter) ([]domain.FeedItem, error)
	Stats(ctx context.Context, since time.Time) (domain.Stats, error)
}

// DataSourceAdmin manages provider records from the admin API.
type DataSourceAdmin interface {
	ListDataSources(ctx context.Context) ([]domain.DataSource, error)
	CreateDataSource(ctx context.Context, source domain.DataSource) (domain.DataSource, error)
	ToggleDataSource(ctx context.Context, id uint) (domain.DataSource, error)
}
