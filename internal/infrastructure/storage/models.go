package storage

import (
	"time"

	"gorm.io/datatypes"

	"FeedIngestor/internal/domain"
)

type dataSourceModel struct {
	ID                 uint   `gorm:"primaryKey"`
	Name               string `gorm:"size:100;not null;uniqueIndex"`
	DisplayName        string `gorm:"size:200;not null"`
	APIKey             string `gorm:"size:500"`
	BaseURL            string `gorm:"size:500"`
	RateLimitPerMinute int
	Config             datatypes.JSONMap
	IsActive           bool `gorm:"not null"`
	LastUsed           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (dataSourceModel) TableName() string { return "data_sources" }

type userModel struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:100;not null;uniqueIndex"`
	Email     string `gorm:"size:255"`
	CreatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type userCategoryModel struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"not null;index"`
	CategoryName string `gorm:"size:100;not null"`
	Keywords     datatypes.JSONSlice[string]
	IsActive     bool `gorm:"not null;index"`
	CreatedAt    time.Time
}

func (userCategoryModel) TableName() string { return "user_categories" }

// feedItemModel carries the (title, data_source_id) unique index the upsert relies on.
type feedItemModel struct {
	ID              uint   `gorm:"primaryKey"`
	Title           string `gorm:"size:500;not null;uniqueIndex:idx_feed_items_title_source,priority:1"`
	Summary         string `gorm:"type:text"`
	Content         string `gorm:"type:text"`
	URL             string `gorm:"column:url;size:1000"`
	Source          string `gorm:"size:200;index"`
	DataSourceID    uint   `gorm:"not null;uniqueIndex:idx_feed_items_title_source,priority:2"`
	Category        string `gorm:"size:100;index"`
	RawData         datatypes.JSONMap
	Tags            datatypes.JSONSlice[string]
	EngagementScore *float64
	PublishedAt     time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (feedItemModel) TableName() string { return "feed_items" }

type ingestionJobModel struct {
	ID             uint   `gorm:"primaryKey"`
	JobType        string `gorm:"size:100;not null;index"`
	Status         string `gorm:"size:50;not null;index"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Parameters     datatypes.JSONMap
	DataSourceID   *uint
	ItemsProcessed int
	ItemsCreated   int
	ItemsUpdated   int
	ErrorMessage   string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index"`
}

func (ingestionJobModel) TableName() string { return "ingestion_jobs" }

// cacheEntryModel rows are append-only; readers take the newest unexpired one.
type cacheEntryModel struct {
	ID           uint   `gorm:"primaryKey"`
	CacheKey     string `gorm:"size:255;not null;index"`
	DataSource   string `gorm:"size:100"`
	ResponseData datatypes.JSON
	ExpiresAt    time.Time `gorm:"index"`
	CreatedAt    time.Time
}

func (cacheEntryModel) TableName() string { return "api_cache" }

func allModels() []any {
	return []any{
		&dataSourceModel{},
		&userModel{},
		&userCategoryModel{},
		&feedItemModel{},
		&ingestionJobModel{},
		&cacheEntryModel{},
	}
}

func (m dataSourceModel) toDomain() domain.DataSource {
	return domain.DataSource{
		ID:                 m.ID,
		Name:               m.Name,
		DisplayName:        m.DisplayName,
		BaseURL:            m.BaseURL,
		RateLimitPerMinute: m.RateLimitPerMinute,
		Config:             map[string]any(m.Config),
		IsActive:           m.IsActive,
		LastUsed:           m.LastUsed,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func fromDataSource(d domain.DataSource) dataSourceModel {
	return dataSourceModel{
		ID:                 d.ID,
		Name:               d.Name,
		DisplayName:        d.DisplayName,
		BaseURL:            d.BaseURL,
		RateLimitPerMinute: d.RateLimitPerMinute,
		Config:             datatypes.JSONMap(d.Config),
		IsActive:           d.IsActive,
		LastUsed:           d.LastUsed,
	}
}

func (m userCategoryModel) toDomain() domain.UserCategory {
	return domain.UserCategory{
		ID:       m.ID,
		UserID:   m.UserID,
		Name:     m.CategoryName,
		Keywords: []string(m.Keywords),
		IsActive: m.IsActive,
	}
}

func (m feedItemModel) toDomain() domain.FeedItem {
	return domain.FeedItem{
		ID:              m.ID,
		Title:           m.Title,
		Summary:         m.Summary,
		Content:         m.Content,
		URL:             m.URL,
		Source:          m.Source,
		DataSourceID:    m.DataSourceID,
		Category:        m.Category,
		Metadata:        map[string]any(m.RawData),
		Tags:            []string(m.Tags),
		EngagementScore: m.EngagementScore,
		PublishedAt:     m.PublishedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func fromFeedItem(item domain.FeedItem) feedItemModel {
	return feedItemModel{
		Title:           item.Title,
		Summary:         item.Summary,
		Content:         item.Content,
		URL:             item.URL,
		Source:          item.Source,
		DataSourceID:    item.DataSourceID,
		Category:        item.Category,
		RawData:         datatypes.JSONMap(item.Metadata),
		Tags:            datatypes.JSONSlice[string](item.Tags),
		EngagementScore: item.EngagementScore,
		PublishedAt:     item.PublishedAt,
	}
}

func (m ingestionJobModel) toDomain() domain.IngestionJob {
	return domain.IngestionJob{
		ID:             m.ID,
		JobType:        m.JobType,
		Status:         domain.JobStatus(m.Status),
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		Parameters:     map[string]any(m.Parameters),
		DataSourceID:   m.DataSourceID,
		ItemsProcessed: m.ItemsProcessed,
		ItemsCreated:   m.ItemsCreated,
		ItemsUpdated:   m.ItemsUpdated,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
	}
}
