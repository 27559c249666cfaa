package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reports serves read-only listings and statistics. Queries are built with
// squirrel and executed through gorm so they follow the pool's dialect.
type Reports struct {
	db   *gorm.DB
	jobs *JobRepository
}

var _ ports.Reports = (*Reports)(nil)

// NewReports binds the read side to db.
func NewReports(db *gorm.DB) *Reports {
	return &Reports{db: db, jobs: NewJobRepository(db)}
}

// ListJobs returns the newest jobs first.
func (r *Reports) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.IngestionJob, error) {
	q := sq.Select("*").
		From("ingestion_jobs").
		OrderBy("created_at DESC", "id DESC").
		Limit(clampLimit(filter.Limit))
	if filter.JobType != "" {
		q = q.Where(sq.Eq{"job_type": filter.JobType})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}

	var rows []ingestionJobModel
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]domain.IngestionJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toDomain())
	}
	return jobs, nil
}

// GetJob loads one job or ErrNotFound.
func (r *Reports) GetJob(ctx context.Context, id uint) (domain.IngestionJob, error) {
	return r.jobs.GetJob(ctx, id)
}

// ListFeedItems pages feed items, newest published first.
func (r *Reports) ListFeedItems(ctx context.Context, filter domain.FeedItemFilter) ([]domain.FeedItem, error) {
	q := sq.Select("*").
		From("feed_items").
		OrderBy("published_at DESC", "id DESC").
		Limit(clampLimit(filter.Limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": filter.Source})
	}

	var rows []feedItemModel
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list feed items: %w", err)
	}

	items := make([]domain.FeedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

// Stats aggregates totals and the job activity since the given time.
func (r *Reports) Stats(ctx context.Context, since time.Time) (domain.Stats, error) {
	stats := domain.Stats{RecentWindowStarted: since.UTC()}

	counts := []struct {
		query sq.SelectBuilder
		dest  *int64
	}{
		{sq.Select("COUNT(*)").From("feed_items"), &stats.TotalFeedItems},
		{sq.Select("COUNT(*)").From("ingestion_jobs"), &stats.TotalIngestionJobs},
		{sq.Select("COUNT(*)").From("data_sources").Where(sq.Eq{"is_active": true}), &stats.ActiveDataSources},
	}
	for _, c := range counts {
		if err := r.scalar(ctx, c.query, c.dest); err != nil {
			return domain.Stats{}, fmt.Errorf("stats: %w", err)
		}
	}

	recent := sq.Select("COUNT(*)", "COALESCE(SUM(items_created), 0)", "COALESCE(SUM(items_updated), 0)").
		From("ingestion_jobs").
		Where(sq.GtOrEq{"created_at": since.UTC()})
	query, args, err := recent.ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: build recent: %w", err)
	}
	row := r.db.WithContext(ctx).Raw(query, args...).Row()
	if err := row.Scan(&stats.RecentJobsCount, &stats.RecentItemsCreated, &stats.RecentItemsUpdated); err != nil {
		return domain.Stats{}, fmt.Errorf("stats: recent jobs: %w", err)
	}

	return stats, nil
}

func (r *Reports) raw(ctx context.Context, q sq.SelectBuilder, dest any) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (r *Reports) scalar(ctx context.Context, q sq.SelectBuilder, dest *int64) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.db.WithContext(ctx).Raw(query, args...).Row().Scan(dest)
}

func clampLimit(limit int) uint64 {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return uint64(limit)
	}
}
