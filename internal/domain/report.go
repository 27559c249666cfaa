package domain

import "time"

// JobFilter narrows job listings.
type JobFilter struct {
	Limit   int
	JobType string
	Status  string
}

// FeedItemFilter narrows feed item listings.
type FeedItemFilter struct {
	Limit    int
	Offset   int
	Category string
	Source   string
}

// Stats summarises stored ingestion state.
type Stats struct {
	TotalFeedItems      int64     `json:"total_feed_items"`
	TotalIngestionJobs  int64     `json:"total_ingestion_jobs"`
	ActiveDataSources   int64     `json:"active_data_sources"`
	RecentItemsCreated  int64     `json:"recent_items_created"`
	RecentItemsUpdated  int64     `json:"recent_items_updated"`
	RecentJobsCount     int64     `json:"recent_jobs_count"`
	RecentWindowStarted time.Time `json:"recent_window_started"`
}
