package domain

import "time"

// DataSource is the identity and settings record of an external content provider.
type DataSource struct {
	ID                 uint           `json:"id"`
	Name               string         `json:"name"`
	DisplayName        string         `json:"display_name"`
	BaseURL            string         `json:"base_url,omitempty"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute"`
	Config             map[string]any `json:"config,omitempty"`
	IsActive           bool           `json:"is_active"`
	LastUsed           *time.Time     `json:"last_used,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Model returns the provider model configured on the source, or fallback.
func (d DataSource) Model(fallback string) string {
	if d.Config == nil {
		return fallback
	}
	if model, ok := d.Config["model"].(string); ok && model != "" {
		return model
	}
	return fallback
}

// User owns interest categories.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UserCategory is a user's named interest area.
type UserCategory struct {
	ID       uint     `json:"id"`
	UserID   uint     `json:"user_id"`
	Name     string   `json:"category_name"`
	Keywords []string `json:"keywords,omitempty"`
	IsActive bool     `json:"is_active"`
}

// FeedItem is a content record derived from a provider response.
type FeedItem struct {
	ID              uint           `json:"id"`
	Title           string         `json:"title"`
	Summary         string         `json:"summary,omitempty"`
	Content         string         `json:"content,omitempty"`
	URL             string         `json:"url,omitempty"`
	Source          string         `json:"source,omitempty"`
	DataSourceID    uint           `json:"data_source_id"`
	Category        string         `json:"category,omitempty"`
	Metadata        map[string]any `json:"raw_data,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	EngagementScore *float64       `json:"engagement_score,omitempty"`
	PublishedAt     time.Time      `json:"published_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CacheEntry is one stored provider response.
type CacheEntry struct {
	ID         uint
	Key        string
	DataSource string
	Payload    []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
