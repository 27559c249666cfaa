package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"FeedIngestor/internal/ports"
	"FeedIngestor/pkg/logger"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrJobFinished is returned when a terminal transition hits a job that already left running.
	ErrJobFinished = errors.New("job already finished")
	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// Options selects the database driver and connection pool limits.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	LogLevel        string
	// Logger receives gorm output; slog.Default when nil.
	Logger *slog.Logger
}

// Open connects to Postgres or SQLite and migrates the schema.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres", "":
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger.New("gorm", opts.Logger, slog.LevelWarn), gormlogger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  gormLevel(opts.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Store hands out per-invocation sessions over a gorm pool.
type Store struct {
	db *gorm.DB
}

var _ ports.Store = (*Store)(nil)

// NewStore wraps an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Session pins one pooled connection for fn and releases it on return,
// whatever fn returns.
func (s *Store) Session(ctx context.Context, fn func(repos ports.Repositories) error) error {
	return s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return fn(ports.Repositories{
			DataSources: &DataSourceRepository{db: conn},
			Categories:  &CategoryRepository{db: conn},
			Items:       &ItemRepository{db: conn},
			Jobs:        &JobRepository{db: conn},
		})
	})
}
