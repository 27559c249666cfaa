package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/extract"
	"FeedIngestor/internal/ports"
)

const (
	defaultRetryDelay  = 60 * time.Second
	defaultMaxRetries  = 3
	defaultUserTimeout = 5 * time.Minute
)

// errNoSubRunner is returned by the fan-out when it cannot dispatch sub-runs.
var errNoSubRunner = errors.New("sub-runner is not configured")

// IngestorDeps wires the driven adapters into the orchestrator.
type IngestorDeps struct {
	Store     ports.Store
	Provider  ports.ContentProvider
	Extractor extract.Extractor
	SubRuns   ports.SubRunner
	Notifier  ports.Notifier
	Metrics   ports.Metrics
	Logger    *slog.Logger

	// Source is inserted when no data source with its name exists yet.
	Source domain.DataSource
	// Model is used when the data source config does not name one.
	Model string

	RetryDelay  time.Duration
	MaxRetries  int
	UserTimeout time.Duration
	Now         func() time.Time
}

// Ingestor runs single-user and all-users ingestion jobs.
type Ingestor struct {
	store     ports.Store
	provider  ports.ContentProvider
	extractor extract.Extractor
	subRuns   ports.SubRunner
	notifier  ports.Notifier
	metrics   ports.Metrics
	logger    *slog.Logger
	upserter  *ItemUpserter

	source      domain.DataSource
	model       string
	retryDelay  time.Duration
	maxRetries  int
	userTimeout time.Duration
	now         func() time.Time
}

// NewIngestor constructs the orchestrator, filling unset knobs with defaults.
func NewIngestor(deps IngestorDeps) *Ingestor {
	in := &Ingestor{
		store:       deps.Store,
		provider:    deps.Provider,
		extractor:   deps.Extractor,
		subRuns:     deps.SubRuns,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		source:      deps.Source,
		model:       deps.Model,
		retryDelay:  deps.RetryDelay,
		maxRetries:  deps.MaxRetries,
		userTimeout: deps.UserTimeout,
		now:         deps.Now,
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}
	if in.extractor == nil {
		in.extractor = extract.NewHeuristic(in.logger)
	}
	if in.retryDelay <= 0 {
		in.retryDelay = defaultRetryDelay
	}
	if in.maxRetries <= 0 {
		in.maxRetries = defaultMaxRetries
	}
	if in.userTimeout <= 0 {
		in.userTimeout = defaultUserTimeout
	}
	if in.now == nil {
		in.now = time.Now
	}
	in.upserter = NewItemUpserter(in.logger.With("component", "upserter"), in.now)
	return in
}

// Ingest runs one ingestion for req. A missing or inactive data source yields
// an error result without a job record. Any other failure marks the job
// failed and returns the task's retry request.
func (in *Ingestor) Ingest(ctx context.Context, task ports.TaskContext, req domain.IngestRequest) (domain.IngestResult, error) {
	task = orNopTask(task)

	var (
		result domain.IngestResult
		runErr error
	)
	err := in.store.Session(ctx, func(repos ports.Repositories) error {
		source, ok, err := in.resolveSource(ctx, repos.DataSources)
		if err != nil {
			return err
		}
		if !ok {
			result = domain.IngestResult{Error: domain.DataSourceNotFound}
			return nil
		}

		queries, err := in.resolveQueries(ctx, repos.Categories, req)
		if err != nil {
			return err
		}

		job := &domain.IngestionJob{
			JobType:      domain.JobTypeIngest,
			Status:       domain.JobStatusRunning,
			StartedAt:    in.stamp(),
			Parameters:   map[string]any{"user_id": req.UserID, "queries": queryTexts(queries)},
			DataSourceID: &source.ID,
		}
		if err := repos.Jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("create ingestion job: %w", err)
		}
		in.touch(ctx, repos.DataSources, source.ID)

		log := in.logger.With("job_id", job.ID, "task_id", task.ID())
		log.Info("ingestion started", "queries", len(queries), "user_id", derefUint(req.UserID))

		counts, err := in.runQueries(ctx, task, repos.Items, source, queries)
		if err == nil {
			err = repos.Jobs.Complete(ctx, job.ID, counts, in.now().UTC())
		}
		if err != nil {
			runErr = err
			in.failJob(ctx, repos.Jobs, job, err)
			return nil
		}

		in.count("jobs.completed", 1, "job_type:"+domain.JobTypeIngest)
		in.count("items.created", int64(counts.Created))
		in.count("items.updated", int64(counts.Updated))
		log.Info("ingestion completed", "created", counts.Created, "updated", counts.Updated, "processed", counts.Processed)

		result = domain.IngestResult{
			Status:           string(domain.JobStatusCompleted),
			Created:          counts.Created,
			Updated:          counts.Updated,
			QueriesProcessed: len(queries),
			UserID:           req.UserID,
		}
		return nil
	})
	if err != nil {
		in.logger.Error("ingestion aborted", "error", err)
		return domain.IngestResult{}, task.Retry(err, in.retryDelay, in.maxRetries)
	}
	if runErr != nil {
		return domain.IngestResult{}, task.Retry(runErr, in.retryDelay, in.maxRetries)
	}

	return result, nil
}

// IngestAllUsers dispatches one single-user run per user with active
// categories and waits for each before starting the next. The first sub-run
// that errors, times out or returns no usable counts fails the whole job.
func (in *Ingestor) IngestAllUsers(ctx context.Context, task ports.TaskContext) (domain.AllUsersResult, error) {
	task = orNopTask(task)

	var (
		result domain.AllUsersResult
		runErr error
	)
	err := in.store.Session(ctx, func(repos ports.Repositories) error {
		source, ok, err := in.resolveSource(ctx, repos.DataSources)
		if err != nil {
			return err
		}
		if !ok {
			result = domain.AllUsersResult{Error: domain.DataSourceNotFound}
			return nil
		}

		users, err := repos.Categories.UsersWithActiveCategories(ctx)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}

		job := &domain.IngestionJob{
			JobType:      domain.JobTypeIngestAllUsers,
			Status:       domain.JobStatusRunning,
			StartedAt:    in.stamp(),
			Parameters:   map[string]any{"users_count": len(users)},
			DataSourceID: &source.ID,
		}
		if err := repos.Jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("create ingestion job: %w", err)
		}
		in.touch(ctx, repos.DataSources, source.ID)

		log := in.logger.With("job_id", job.ID, "task_id", task.ID())
		log.Info("fan-out started", "users", len(users))

		totals, processed, err := in.runUsers(ctx, task, users)
		if err == nil {
			err = repos.Jobs.Complete(ctx, job.ID, totals, in.now().UTC())
		}
		if err != nil {
			runErr = err
			in.failJob(ctx, repos.Jobs, job, err)
			return nil
		}

		in.count("jobs.completed", 1, "job_type:"+domain.JobTypeIngestAllUsers)
		log.Info("fan-out completed", "users_processed", processed, "created", totals.Created, "updated", totals.Updated)
		in.notify(ctx, fmt.Sprintf("Ingestion for %d users completed: %d created, %d updated", processed, totals.Created, totals.Updated))

		result = domain.AllUsersResult{
			Status:         string(domain.JobStatusCompleted),
			Created:        totals.Created,
			Updated:        totals.Updated,
			UsersProcessed: processed,
			TotalUsers:     len(users),
		}
		return nil
	})
	if err != nil {
		in.logger.Error("fan-out aborted", "error", err)
		return domain.AllUsersResult{}, task.Retry(err, in.retryDelay, in.maxRetries)
	}
	if runErr != nil {
		return domain.AllUsersResult{}, task.Retry(runErr, in.retryDelay, in.maxRetries)
	}

	return result, nil
}

func (in *Ingestor) runQueries(ctx context.Context, task ports.TaskContext, items ports.ItemRepository, source domain.DataSource, queries []domain.Query) (domain.Counts, error) {
	var counts domain.Counts
	model := source.Model(in.model)

	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		task.ReportProgress(domain.QueryProgress{
			CurrentQuery: query.Text,
			Processed:    i + 1,
			Total:        len(queries),
			Category:     query.Category(),
		})

		if in.provider == nil {
			continue
		}
		resp, err := in.provider.Query(ctx, query.Text, model)
		if err != nil {
			return counts, fmt.Errorf("query %q: %w", query.Text, err)
		}
		if resp == nil {
			in.logger.Info("no response for query", "query", query.Text)
			continue
		}

		batch, err := in.upserter.Save(ctx, items, in.extractor.Extract(resp), source, query)
		if err != nil {
			return counts, err
		}
		counts.Add(batch)
	}

	return counts, nil
}

func (in *Ingestor) runUsers(ctx context.Context, task ports.TaskContext, users []domain.User) (domain.Counts, int, error) {
	var (
		totals    domain.Counts
		processed int
	)
	if len(users) > 0 && in.subRuns == nil {
		return totals, 0, errNoSubRunner
	}

	for _, user := range users {
		task.ReportProgress(domain.UserProgress{
			CurrentUser:    user.Username,
			ProcessedUsers: processed + 1,
			TotalUsers:     len(users),
		})

		res, err := in.subRuns.IngestUser(ctx, user.ID, in.userTimeout)
		if err != nil {
			return totals, processed, fmt.Errorf("ingest user %d: %w", user.ID, err)
		}
		if !res.Usable() {
			reason := res.Error
			if reason == "" {
				reason = "status " + res.Status
			}
			return totals, processed, fmt.Errorf("ingest user %d: no usable result: %s", user.ID, reason)
		}

		totals.Created += res.Created
		totals.Updated += res.Updated
		processed++
	}

	return totals, processed, nil
}

// resolveSource reports ok=false when the source exists but is inactive.
func (in *Ingestor) resolveSource(ctx context.Context, repo ports.DataSourceRepository) (domain.DataSource, bool, error) {
	source, err := repo.GetOrCreate(ctx, in.source)
	if err != nil {
		return domain.DataSource{}, false, fmt.Errorf("resolve data source: %w", err)
	}
	if !source.IsActive {
		in.logger.Warn("data source is inactive", "name", source.Name)
		return source, false, nil
	}
	return source, true, nil
}

func (in *Ingestor) resolveQueries(ctx context.Context, repo ports.CategoryRepository, req domain.IngestRequest) ([]domain.Query, error) {
	if req.Queries != nil {
		return req.Queries, nil
	}
	if req.UserID == nil {
		return DeriveFallback(), nil
	}

	categories, err := repo.ActiveForUser(ctx, *req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load categories for user %d: %w", *req.UserID, err)
	}
	return DeriveForUser(categories), nil
}

func (in *Ingestor) failJob(ctx context.Context, jobs ports.JobRepository, job *domain.IngestionJob, cause error) {
	// The run context may already be cancelled; the failure still has to land.
	ctx = context.WithoutCancel(ctx)

	in.logger.Error("ingestion failed", "job_id", job.ID, "job_type", job.JobType, "error", cause)
	if err := jobs.Fail(ctx, job.ID, cause.Error(), in.now().UTC()); err != nil {
		in.logger.Error("mark job failed", "job_id", job.ID, "error", err)
	}
	in.count("jobs.failed", 1, "job_type:"+job.JobType)
	in.notify(ctx, fmt.Sprintf("Ingestion job %d (%s) failed: %v", job.ID, job.JobType, cause))
}

func (in *Ingestor) touch(ctx context.Context, repo ports.DataSourceRepository, id uint) {
	if err := repo.Touch(ctx, id, in.now().UTC()); err != nil {
		in.logger.Warn("stamp data source", "id", id, "error", err)
	}
}

func (in *Ingestor) notify(ctx context.Context, message string) {
	if in.notifier == nil {
		return
	}
	if err := in.notifier.Notify(ctx, message); err != nil {
		in.logger.Warn("notify", "error", err)
	}
}

func (in *Ingestor) count(name string, value int64, tags ...string) {
	if in.metrics == nil {
		return
	}
	in.metrics.Count(name, value, tags...)
}

func (in *Ingestor) stamp() *time.Time {
	now := in.now().UTC()
	return &now
}

func queryTexts(queries []domain.Query) []string {
	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	return texts
}

func derefUint(v *uint) any {
	if v == nil {
		return nil
	}
	return *v
}

type nopTask struct{}

func (nopTask) ID() string { return "" }
func (nopTask) ReportProgress(any) {}
func (nopTask) Retry(cause error, _ time.Duration, _ int) error { return cause }

func orNopTask(task ports.TaskContext) ports.TaskContext {
	if task == nil {
		return nopTask{}
	}
	return task
}
