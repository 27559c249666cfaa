package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates ingestion job states. Running is the only non-terminal one.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

const (
	JobTypeIngest         = "perplexity"
	JobTypeIngestAllUsers = "perplexity_all_users"
)

// DataSourceNotFound is the result message when the provider source is missing or inactive.
const DataSourceNotFound = "Data source not found"

// IngestionJob audits one orchestrator invocation.
type IngestionJob struct {
	ID             uint           `json:"id"`
	JobType        string         `json:"job_type"`
	Status         JobStatus      `json:"status"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	DataSourceID   *uint          `json:"data_source_id,omitempty"`
	ItemsProcessed int            `json:"items_processed"`
	ItemsCreated   int            `json:"items_created"`
	ItemsUpdated   int            `json:"items_updated"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IngestRequest parametrises a single run. Nil Queries means derive them.
type IngestRequest struct {
	UserID  *uint   `json:"user_id,omitempty"`
	Queries []Query `json:"queries,omitempty"`
}

// IngestResult is returned by a single run.
type IngestResult struct {
	Status           string `json:"status"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	QueriesProcessed int    `json:"queries_processed"`
	UserID           *uint  `json:"user_id"`
	Error            string `json:"error,omitempty"`
}

// Usable reports whether the result carries counts of a completed run.
func (r IngestResult) Usable() bool {
	return r.Error == "" && r.Status == string(JobStatusCompleted)
}

// MarshalJSON renders error results as {"error": ...} only.
func (r IngestResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	type plain IngestResult
	return json.Marshal(plain(r))
}

// AllUsersResult is returned by the fan-out run.
type AllUsersResult struct {
	Status         string `json:"status"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	UsersProcessed int    `json:"users_processed"`
	TotalUsers     int    `json:"total_users"`
	Error          string `json:"error,omitempty"`
}

// MarshalJSON renders error results as {"error": ...} only.
func (r AllUsersResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	type plain AllUsersResult
	return json.Marshal(plain(r))
}

// QueryProgress is reported once per query of a single run.
type QueryProgress struct {
	CurrentQuery string `json:"current_query"`
	Processed    int    `json:"processed"`
	Total        int    `json:"total"`
	Category     string `json:"category"`
}

// UserProgress is reported once per user of a fan-out run.
type UserProgress struct {
	CurrentUser    string `json:"current_user"`
	ProcessedUsers int    `json:"processed_users"`
	TotalUsers     int    `json:"total_users"`
}
