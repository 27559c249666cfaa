package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"FeedIngestor/internal/config"
	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/extract"
	"FeedIngestor/internal/infrastructure/cache"
	"FeedIngestor/internal/infrastructure/httpapi"
	"FeedIngestor/internal/infrastructure/llm"
	"FeedIngestor/internal/infrastructure/metrics"
	"FeedIngestor/internal/infrastructure/scheduler"
	"FeedIngestor/internal/infrastructure/storage"
	"FeedIngestor/internal/infrastructure/taskqueue"
	"FeedIngestor/internal/infrastructure/telegram"
	"FeedIngestor/internal/logging"
	"FeedIngestor/internal/ports"
	"FeedIngestor/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	queue     *taskqueue.Queue
	tasks     *taskqueue.Client
	server    *httpapi.Server
	scheduler *usecase.Scheduler
	closers   []func() error
}

// New connects every adapter described by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg := a.cfg
	component := func(name string) *slog.Logger { return a.logger.With("component", name) }

	db, err := storage.Open(storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		SlowThreshold:   cfg.Database.SlowThreshold,
		LogLevel:        cfg.Database.LogLevel,
		Logger:          component("storage"),
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return storage.Close(db) })

	responses, err := cache.NewLRU(storage.NewCacheRepository(db, cfg.Provider.Name), cfg.Cache.FrontSize)
	if err != nil {
		return fmt.Errorf("response cache: %w", err)
	}

	var counters ports.Metrics = metrics.Nop{}
	if cfg.Metrics.StatsdAddr != "" {
		sd, err := metrics.NewStatsd(cfg.Metrics.StatsdAddr, cfg.Metrics.Namespace, component("metrics"))
		if err != nil {
			return err
		}
		counters = sd
		a.closers = append(a.closers, sd.Close)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	provider := llm.NewPerplexityClient(cfg.Provider, llm.Options{
		Cache:    responses,
		CacheTTL: cfg.Cache.TTL,
		Metrics:  counters,
		Logger:   component("provider"),
	})

	registry := extract.NewRegistry()
	registry.Register(extract.NewHeuristic(component("extract.heuristic")))
	registry.Register(extract.NewMarkdown(component("extract.markdown")))
	extractor, err := registry.Resolve(cfg.Ingestion.Extractor)
	if err != nil {
		return err
	}

	backend, err := a.taskBackend(ctx)
	if err != nil {
		return err
	}
	a.queue = taskqueue.New(backend, taskqueue.Options{
		Buffer: cfg.Queue.Buffer,
		Logger: component("taskqueue"),
	})
	a.closers = append(a.closers, a.queue.Close)
	a.tasks = taskqueue.NewClient(a.queue)

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Store:     storage.NewStore(db),
		Provider:  provider,
		Extractor: extractor,
		SubRuns:   a.tasks,
		Notifier:  notifier,
		Metrics:   counters,
		Logger:    component("ingestor"),
		Source: domain.DataSource{
			Name:               cfg.Provider.Name,
			DisplayName:        cfg.Provider.DisplayName,
			BaseURL:            cfg.Provider.Endpoint,
			RateLimitPerMinute: cfg.Provider.RateLimitPerMinute,
			Config:             map[string]any{"model": cfg.Provider.Model},
			IsActive:           true,
		},
		Model:       cfg.Provider.Model,
		RetryDelay:  cfg.Ingestion.RetryDelay,
		MaxRetries:  cfg.Ingestion.MaxRetries,
		UserTimeout: cfg.Ingestion.UserTimeout,
	})
	taskqueue.RegisterIngestion(a.queue, ingestor)

	a.scheduler = usecase.NewScheduler(
		scheduler.NewTickerScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location()),
		a.tasks,
		component("scheduler"),
	)

	a.server = httpapi.New(httpapi.Deps{
		Dispatcher: a.tasks,
		Tasks:      a.tasks,
		Reports:    storage.NewReports(db),
		Sources:    storage.NewDataSourceRepository(db),
		Logger:     component("httpapi"),
	}, cfg.HTTP.Mode)
	return nil
}

func (a *Application) taskBackend(ctx context.Context) (taskqueue.Backend, error) {
	switch a.cfg.Queue.Backend {
	case "memory", "":
		return taskqueue.NewMemoryBackend(), nil
	case "redis":
		client, err := taskqueue.DialRedis(ctx, a.cfg.Queue.RedisAddr, a.cfg.Queue.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return taskqueue.NewRedisBackend(client, a.cfg.Queue.ResultTTL), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", a.cfg.Queue.Backend)
	}
}

// Serve runs the admin API, the task workers and, when enabled, the
// scheduler until ctx is cancelled or one of them fails.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.queue.Start(gctx); err != nil {
		return err
	}
	defer a.queue.Drain()

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)
		g.Go(func() error {
			<-gctx.Done()
			return a.scheduler.Stop(context.WithoutCancel(gctx))
		})
	}

	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.HTTP.Addr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// IngestOnce performs one single-user run in the foreground.
func (a *Application) IngestOnce(ctx context.Context, userID *uint) (ports.TaskState, error) {
	return a.runInline(ctx, taskqueue.TaskIngest, domain.IngestRequest{UserID: userID})
}

// IngestAll performs the fan-out in the foreground; per-user runs go through
// the queue workers.
func (a *Application) IngestAll(ctx context.Context) (ports.TaskState, error) {
	return a.runInline(ctx, taskqueue.TaskIngestAllUsers, struct{}{})
}

func (a *Application) runInline(ctx context.Context, name string, payload any) (ports.TaskState, error) {
	ctx, cancel := context.WithCancel(ctx)
	if err := a.queue.Start(ctx); err != nil {
		cancel()
		return ports.TaskState{}, err
	}
	defer func() {
		cancel()
		a.queue.Drain()
	}()

	state, err := a.queue.RunInline(ctx, name, payload)
	if err != nil {
		return ports.TaskState{}, err
	}
	a.logger.Info("run finished", "task", name, "task_id", state.ID, "status", state.Status)
	if state.Status != taskqueue.StatusSuccess {
		return state, fmt.Errorf("%s finished with %s: %s", name, state.Status, state.Error)
	}
	return state, nil
}

// Close releases adapters in reverse order of creation.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
