package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// ItemRepository persists feed items.
type ItemRepository struct {
	db *gorm.DB
}

var _ ports.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository binds the repository to db.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Batch runs fn inside one transaction; its commit is the only commit point
// for the writes fn makes.
func (r *ItemRepository) Batch(ctx context.Context, fn func(w ports.ItemWriter) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&itemWriter{tx: tx})
	})
}

type itemWriter struct {
	tx *gorm.DB
}

// Upsert runs in a savepoint so a failed item leaves the batch usable.
func (w *itemWriter) Upsert(ctx context.Context, item domain.FeedItem) (bool, error) {
	var created bool
	err := w.tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		row := fromFeedItem(item)
		res := sp.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title"}, {Name: "data_source_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			return nil
		}

		updates := map[string]any{"updated_at": time.Now().UTC()}
		if item.Summary != "" {
			updates["summary"] = item.Summary
		}
		if item.URL != "" {
			updates["url"] = item.URL
		}
		return sp.Model(&feedItemModel{}).
			Where("title = ? AND data_source_id = ?", item.Title, item.DataSourceID).
			Updates(updates).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert feed item %q: %w", item.Title, err)
	}
	return created, nil
}
