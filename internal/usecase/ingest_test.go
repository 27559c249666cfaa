package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedIngestor/internal/domain"
)

const longSummary = "A sufficiently long summary line that clears the fifty character threshold."

func story(title string) string {
	return fmt.Sprintf("**%s**\n%s\nhttps://example.com/%s\n", title, longSummary, title)
}

func newTestIngestor(store *memoryStore, provider *scriptedProvider, subRuns *scriptedSubRunner, metrics *countingMetrics) *Ingestor {
	deps := IngestorDeps{
		Store:  store,
		Source: testSource(),
		Model:  "test-model",
		Now:    fixedNow,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	if provider != nil {
		deps.Provider = provider
	}
	if subRuns != nil {
		deps.SubRuns = subRuns
	}
	return NewIngestor(deps)
}

func TestIngestFallbackQueriesEndToEnd(t *testing.T) {
	t.Parallel()

	content := map[string]string{}
	for i, q := range DeriveFallback() {
		content[q.Text] = story(fmt.Sprintf("story-%d", i))
	}
	store := newMemoryStore()
	provider := &scriptedProvider{content: content}
	metrics := &countingMetrics{}
	ingestor := newTestIngestor(store, provider, nil, metrics)
	task := &recordingTask{}

	result, err := ingestor.Ingest(context.Background(), task, domain.IngestRequest{})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 5, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 5, result.QueriesProcessed)
	assert.Nil(t, result.UserID)

	require.Len(t, task.progress, 5)
	last, ok := task.progress[4].(domain.QueryProgress)
	require.True(t, ok)
	assert.Equal(t, domain.QueryProgress{CurrentQuery: DeriveFallback()[4].Text, Processed: 5, Total: 5, Category: "General"}, last)

	require.Len(t, store.jobs, 1)
	job := store.job(0)
	assert.Equal(t, domain.JobTypeIngest, job.JobType)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 5, job.ItemsCreated)
	assert.Equal(t, 5, job.ItemsProcessed)
	assert.Len(t, job.Parameters["queries"], 5)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, store.source.LastUsed)

	assert.Equal(t, 0, store.open, "session not released")
	assert.Empty(t, task.retries)
	assert.Equal(t, int64(5), metrics.counts["items.created"])

	again, err := ingestor.Ingest(context.Background(), task, domain.IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 5, again.Updated)
	assert.Len(t, store.items, 5)
}

func TestIngestUserCategories(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.categories = []domain.UserCategory{
		{ID: 1, UserID: 3, Name: "Tech", Keywords: []string{"chips"}, IsActive: true},
		{ID: 2, UserID: 3, Name: "Art", IsActive: false},
		{ID: 3, UserID: 4, Name: "Other", IsActive: true},
	}
	query := "What are the latest news and developments about chips?"
	provider := &scriptedProvider{content: map[string]string{query: story("chip-news")}}
	ingestor := newTestIngestor(store, provider, nil, nil)

	result, err := ingestor.Ingest(context.Background(), &recordingTask{}, domain.IngestRequest{UserID: uintPtr(3)})
	require.NoError(t, err)

	assert.Equal(t, []string{query}, provider.calls)
	assert.Equal(t, 1, result.Created)
	require.NotNil(t, result.UserID)
	assert.Equal(t, uint(3), *result.UserID)

	item := store.items["chip-news|1"]
	assert.Equal(t, "Tech", item.Category)
	assert.Equal(t, []string{"ai", "perplexity", "tech"}, item.Tags)
}

func TestIngestUserWithoutActiveCategoriesUsesFallback(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.categories = []domain.UserCategory{
		{ID: 1, UserID: 7, Name: "Dormant", Keywords: []string{"retired"}, IsActive: false},
		{ID: 2, UserID: 8, Name: "Tech", IsActive: true},
	}

	fallback := DeriveFallback()
	content := map[string]string{}
	want := 0
	for i, q := range fallback {
		// query i yields i%2+1 stories so the job total is a real sum
		text := story(fmt.Sprintf("user7-%d-a", i))
		want++
		if i%2 == 1 {
			text += story(fmt.Sprintf("user7-%d-b", i))
			want++
		}
		content[q.Text] = text
	}
	provider := &scriptedProvider{content: content}
	ingestor := newTestIngestor(store, provider, nil, nil)
	task := &recordingTask{}

	result, err := ingestor.Ingest(context.Background(), task, domain.IngestRequest{UserID: uintPtr(7)})
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, want, result.Created)
	assert.Equal(t, 5, result.QueriesProcessed)
	require.NotNil(t, result.UserID)
	assert.Equal(t, uint(7), *result.UserID)

	require.Len(t, task.progress, 5)
	for i, p := range task.progress {
		progress, ok := p.(domain.QueryProgress)
		require.True(t, ok)
		assert.Equal(t, domain.QueryProgress{CurrentQuery: fallback[i].Text, Processed: i + 1, Total: 5, Category: domain.GeneralCategory}, progress)
	}

	texts := make([]string, len(fallback))
	for i, q := range fallback {
		texts[i] = q.Text
	}
	require.Len(t, store.jobs, 1)
	job := store.job(0)
	assert.Equal(t, domain.JobTypeIngest, job.JobType)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, uintPtr(7), job.Parameters["user_id"])
	assert.Equal(t, texts, job.Parameters["queries"])
	assert.Equal(t, want, job.ItemsCreated)
	assert.Equal(t, 0, job.ItemsUpdated)

	for _, item := range store.items {
		assert.Equal(t, domain.GeneralCategory, item.Category)
		assert.NotContains(t, item.Metadata, "user_id", "fallback queries carry no user id")
	}
}

func TestIngestExplicitQueriesAndUnavailableProvider(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	provider := &scriptedProvider{content: map[string]string{}}
	ingestor := newTestIngestor(store, provider, nil, nil)

	result, err := ingestor.Ingest(context.Background(), nil, domain.IngestRequest{Queries: QueriesFromText([]string{"one", "two"})})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, provider.calls)
	assert.Equal(t, domain.IngestResult{Status: "completed", QueriesProcessed: 2}, result)
	assert.Equal(t, domain.JobStatusCompleted, store.job(0).Status)
}

func TestIngestInactiveSourceCreatesNoJob(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	inactive := testSource()
	inactive.ID = 1
	inactive.IsActive = false
	store.source = &inactive
	provider := &scriptedProvider{}
	ingestor := newTestIngestor(store, provider, nil, nil)

	result, err := ingestor.Ingest(context.Background(), &recordingTask{}, domain.IngestRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceNotFound, result.Error)
	assert.Empty(t, store.jobs)
	assert.Empty(t, provider.calls)

	raw, err := result.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Data source not found"}`, string(raw))

	all, err := ingestor.IngestAllUsers(context.Background(), &recordingTask{})
	require.NoError(t, err)
	assert.Equal(t, domain.DataSourceNotFound, all.Error)
	assert.Empty(t, store.jobs)
}

func TestIngestFailureMarksJobAndRequestsRetry(t *testing.T) {
	t.Parallel()

	queries := DeriveFallback()
	content := map[string]string{queries[0].Text: story("first")}
	store := newMemoryStore()
	provider := &scriptedProvider{content: content, failOn: queries[1].Text}
	metrics := &countingMetrics{}
	ingestor := newTestIngestor(store, provider, nil, metrics)
	task := &recordingTask{}

	_, err := ingestor.Ingest(context.Background(), task, domain.IngestRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRetryRequested))
	require.Len(t, task.retries, 1)

	job := store.job(0)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "boom")
	require.NotNil(t, job.CompletedAt)
	assert.Len(t, task.progress, 2)
	assert.Equal(t, int64(1), metrics.counts["jobs.failed"])
	assert.Equal(t, 0, store.open)

	// Items saved before the failure stay committed.
	assert.Contains(t, store.items, "first|1")
}

func TestIngestAllUsersSumsSubRuns(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.users = []domain.User{{ID: 1, Username: "ann"}, {ID: 2, Username: "bob"}}
	subRuns := &scriptedSubRunner{results: map[uint]domain.IngestResult{
		1: {Status: "completed", Created: 2, Updated: 1, QueriesProcessed: 1},
		2: {Status: "completed", Created: 3, QueriesProcessed: 2},
	}}
	ingestor := newTestIngestor(store, nil, subRuns, nil)
	task := &recordingTask{}

	result, err := ingestor.IngestAllUsers(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, domain.AllUsersResult{Status: "completed", Created: 5, Updated: 1, UsersProcessed: 2, TotalUsers: 2}, result)
	assert.Equal(t, []uint{1, 2}, subRuns.calls)
	assert.Equal(t, []any{
		domain.UserProgress{CurrentUser: "ann", ProcessedUsers: 1, TotalUsers: 2},
		domain.UserProgress{CurrentUser: "bob", ProcessedUsers: 2, TotalUsers: 2},
	}, task.progress)

	job := store.job(0)
	assert.Equal(t, domain.JobTypeIngestAllUsers, job.JobType)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.Parameters["users_count"])
	assert.Equal(t, 5, job.ItemsCreated)
}

func TestIngestAllUsersFailsOnUnusableResult(t *testing.T) {
	t.Parallel()

	cases := map[string]*scriptedSubRunner{
		"error": {
			results: map[uint]domain.IngestResult{1: {Status: "completed", Created: 1}},
			errs:    map[uint]error{2: context.DeadlineExceeded},
		},
		"missing source": {
			results: map[uint]domain.IngestResult{1: {Status: "completed", Created: 1}, 2: {Error: domain.DataSourceNotFound}},
		},
	}

	for name, subRuns := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newMemoryStore()
			store.users = []domain.User{{ID: 1, Username: "ann"}, {ID: 2, Username: "bob"}, {ID: 3, Username: "cid"}}
			ingestor := newTestIngestor(store, nil, subRuns, nil)
			task := &recordingTask{}

			_, err := ingestor.IngestAllUsers(context.Background(), task)
			require.Error(t, err)
			require.Len(t, task.retries, 1)
			assert.Equal(t, []uint{1, 2}, subRuns.calls)

			job := store.job(0)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Contains(t, job.ErrorMessage, "user 2")
		})
	}
}

func TestIngestAllUsersWithoutUsers(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	ingestor := newTestIngestor(store, nil, nil, nil)

	result, err := ingestor.IngestAllUsers(context.Background(), &recordingTask{})
	require.NoError(t, err)
	assert.Equal(t, domain.AllUsersResult{Status: "completed"}, result)
}

func TestNewIngestorDefaults(t *testing.T) {
	t.Parallel()

	in := NewIngestor(IngestorDeps{})
	assert.Equal(t, 60*time.Second, in.retryDelay)
	assert.Equal(t, 3, in.maxRetries)
	assert.Equal(t, 5*time.Minute, in.userTimeout)
	assert.NotNil(t, in.extractor)
}
