package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"FeedIngestor/internal/ports"
)

// CacheRepository stores provider responses. Entries are never updated;
// a later Put for the same key shadows the earlier one.
type CacheRepository struct {
	db         *gorm.DB
	dataSource string
	now        func() time.Time
}

var _ ports.ResponseCache = (*CacheRepository)(nil)

// NewCacheRepository binds the cache to db, labelling rows with dataSource.
func NewCacheRepository(db *gorm.DB, dataSource string) *CacheRepository {
	return &CacheRepository{db: db, dataSource: dataSource, now: time.Now}
}

// Get returns the newest unexpired payload stored for key by this data source.
func (r *CacheRepository) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var row cacheEntryModel
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND data_source = ? AND expires_at > ?", key, r.dataSource, r.now().UTC()).
		Order("created_at DESC").
		Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache %s: %w", key, err)
	}
	return json.RawMessage(row.ResponseData), true, nil
}

// Put appends an entry valid for ttl.
func (r *CacheRepository) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	row := cacheEntryModel{
		CacheKey:     key,
		DataSource:   r.dataSource,
		ResponseData: datatypes.JSON(payload),
		ExpiresAt:    r.now().UTC().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}
