package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// JobRepository tracks ingestion job records.
type JobRepository struct {
	db *gorm.DB
}

var _ ports.JobRepository = (*JobRepository)(nil)

// NewJobRepository binds the repository to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts job and fills its id and creation time.
func (r *JobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	row := ingestionJobModel{
		JobType:      job.JobType,
		Status:       string(job.Status),
		StartedAt:    job.StartedAt,
		Parameters:   datatypes.JSONMap(job.Parameters),
		DataSourceID: job.DataSourceID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	job.ID = row.ID
	job.CreatedAt = row.CreatedAt
	return nil
}

// Complete moves a running job to completed with the given counts.
func (r *JobRepository) Complete(ctx context.Context, id uint, counts domain.Counts, at time.Time) error {
	return r.finish(ctx, id, map[string]any{
		"status":          string(domain.JobStatusCompleted),
		"completed_at":    at,
		"items_processed": counts.Processed,
		"items_created":   counts.Created,
		"items_updated":   counts.Updated,
	})
}

// Fail moves a running job to failed with message.
func (r *JobRepository) Fail(ctx context.Context, id uint, message string, at time.Time) error {
	return r.finish(ctx, id, map[string]any{
		"status":        string(domain.JobStatusFailed),
		"completed_at":  at,
		"error_message": message,
	})
}

// finish applies a terminal transition only while the job is still running.
func (r *JobRepository) finish(ctx context.Context, id uint, updates map[string]any) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&ingestionJobModel{}).
		Where("id = ? AND status = ?", id, string(domain.JobStatusRunning)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finish job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := r.GetJob(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("finish job %d: %w", id, ErrJobFinished)
}

// GetJob loads one job.
func (r *JobRepository) GetJob(ctx context.Context, id uint) (domain.IngestionJob, error) {
	var row ingestionJobModel
	if err := r.db.WithContext(ctx).Take(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.IngestionJob{}, fmt.Errorf("job %d: %w", id, ErrNotFound)
		}
		return domain.IngestionJob{}, fmt.Errorf("load job %d: %w", id, err)
	}
	return row.toDomain(), nil
}
