package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/infrastructure/storage"
	"FeedIngestor/internal/infrastructure/taskqueue"
	"FeedIngestor/internal/usecase"
)

func detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.deps.Logger.Error(op, "error", err)
	detail(c, http.StatusInternalServerError, op+" failed")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listDataSources(c *gin.Context) {
	sources, err := s.deps.Sources.ListDataSources(c.Request.Context())
	if err != nil {
		s.internalError(c, "list data sources", err)
		return
	}
	c.JSON(http.StatusOK, sources)
}

type createDataSourceRequest struct {
	Name               string         `json:"name" binding:"required"`
	DisplayName        string         `json:"display_name" binding:"required"`
	BaseURL            string         `json:"base_url"`
	RateLimitPerMinute *int           `json:"rate_limit_per_minute"`
	Config             map[string]any `json:"config"`
}

func (s *Server) createDataSource(c *gin.Context) {
	var req createDataSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	rateLimit := 60
	if req.RateLimitPerMinute != nil {
		rateLimit = *req.RateLimitPerMinute
	}

	created, err := s.deps.Sources.CreateDataSource(c.Request.Context(), domain.DataSource{
		Name:               req.Name,
		DisplayName:        req.DisplayName,
		BaseURL:            req.BaseURL,
		RateLimitPerMinute: rateLimit,
		Config:             req.Config,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		detail(c, http.StatusBadRequest, "Data source already exists")
		return
	}
	if err != nil {
		s.internalError(c, "create data source", err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) toggleDataSource(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	source, err := s.deps.Sources.ToggleDataSource(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		detail(c, http.StatusNotFound, domain.DataSourceNotFound)
		return
	}
	if err != nil {
		s.internalError(c, "toggle data source", err)
		return
	}

	state := "deactivated"
	if source.IsActive {
		state = "activated"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Data source " + source.Name + " " + state})
}

func (s *Server) listJobs(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	jobs, err := s.deps.Reports.ListJobs(c.Request.Context(), domain.JobFilter{
		Limit:   limit,
		JobType: c.Query("job_type"),
		Status:  c.Query("status"),
	})
	if err != nil {
		s.internalError(c, "list ingestion jobs", err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	job, err := s.deps.Reports.GetJob(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		detail(c, http.StatusNotFound, "Ingestion job not found")
		return
	}
	if err != nil {
		s.internalError(c, "get ingestion job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type ingestRequest struct {
	UserID  *uint    `json:"user_id"`
	Queries []string `json:"queries"`
}

func (s *Server) triggerIngest(c *gin.Context) {
	var req ingestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, err := s.deps.Dispatcher.DispatchIngest(c.Request.Context(), domain.IngestRequest{
		UserID:  req.UserID,
		Queries: usecase.QueriesFromText(req.Queries),
	})
	if err != nil {
		s.deps.Logger.Error("dispatch ingestion", "error", err)
		detail(c, http.StatusInternalServerError, "Failed to start ingestion job: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Perplexity ingestion job started", "task_id": id, "status": "pending"})
}

func (s *Server) triggerIngestAllUsers(c *gin.Context) {
	id, err := s.deps.Dispatcher.DispatchIngestAllUsers(c.Request.Context())
	if err != nil {
		s.deps.Logger.Error("dispatch all-users ingestion", "error", err)
		detail(c, http.StatusInternalServerError, "Failed to start ingestion job: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Perplexity ingestion for all users started", "task_id": id, "status": "pending"})
}

func (s *Server) listFeedItems(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	items, err := s.deps.Reports.ListFeedItems(c.Request.Context(), domain.FeedItemFilter{
		Limit:    limit,
		Offset:   offset,
		Category: c.Query("category"),
		Source:   c.Query("source"),
	})
	if err != nil {
		s.internalError(c, "list feed items", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.deps.Reports.Stats(c.Request.Context(), s.deps.Now().Add(-statsWindow))
	if err != nil {
		s.internalError(c, "ingestion stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) taskStatus(c *gin.Context) {
	state, err := s.deps.Tasks.State(c.Request.Context(), c.Param("id"))
	if errors.Is(err, taskqueue.ErrNotFound) {
		detail(c, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		s.internalError(c, "task status", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		detail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
