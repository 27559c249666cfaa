package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// DataSourceRepository persists provider identity records.
type DataSourceRepository struct {
	db *gorm.DB
}

var (
	_ ports.DataSourceRepository = (*DataSourceRepository)(nil)
	_ ports.DataSourceAdmin      = (*DataSourceRepository)(nil)
)

// NewDataSourceRepository binds the repository to db.
func NewDataSourceRepository(db *gorm.DB) *DataSourceRepository {
	return &DataSourceRepository{db: db}
}

// GetOrCreate returns the source named defaults.Name. A concurrent creator
// may win the insert; the row is re-read either way.
func (r *DataSourceRepository) GetOrCreate(ctx context.Context, defaults domain.DataSource) (domain.DataSource, error) {
	db := r.db.WithContext(ctx)

	var row dataSourceModel
	err := db.Where("name = ?", defaults.Name).Take(&row).Error
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DataSource{}, fmt.Errorf("load data source %s: %w", defaults.Name, err)
	}

	insert := fromDataSource(defaults)
	insert.ID = 0
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&insert).Error
	if err != nil {
		return domain.DataSource{}, fmt.Errorf("create data source %s: %w", defaults.Name, err)
	}

	if err := db.Where("name = ?", defaults.Name).Take(&row).Error; err != nil {
		return domain.DataSource{}, fmt.Errorf("reload data source %s: %w", defaults.Name, err)
	}
	return row.toDomain(), nil
}

// Touch stamps last_used.
func (r *DataSourceRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&dataSourceModel{}).
		Where("id = ?", id).
		Update("last_used", at).Error
	if err != nil {
		return fmt.Errorf("touch data source %d: %w", id, err)
	}
	return nil
}

// ListDataSources returns every source ordered by id.
func (r *DataSourceRepository) ListDataSources(ctx context.Context) ([]domain.DataSource, error) {
	var rows []dataSourceModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}

	sources := make([]domain.DataSource, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, row.toDomain())
	}
	return sources, nil
}

// CreateDataSource inserts a new active source; ErrDuplicate if the name is taken.
func (r *DataSourceRepository) CreateDataSource(ctx context.Context, source domain.DataSource) (domain.DataSource, error) {
	row := fromDataSource(source)
	row.ID = 0
	row.IsActive = true

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return domain.DataSource{}, fmt.Errorf("create data source %s: %w", source.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.DataSource{}, fmt.Errorf("data source %s: %w", source.Name, ErrDuplicate)
	}
	return row.toDomain(), nil
}

// ToggleDataSource flips is_active and returns the updated source.
func (r *DataSourceRepository) ToggleDataSource(ctx context.Context, id uint) (domain.DataSource, error) {
	var row dataSourceModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		row.IsActive = !row.IsActive
		return tx.Model(&row).Update("is_active", row.IsActive).Error
	})
	if err != nil {
		return domain.DataSource{}, fmt.Errorf("toggle data source %d: %w", id, err)
	}
	return row.toDomain(), nil
}
