package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"FeedIngestor/internal/config"
	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/infrastructure/cache"
	"FeedIngestor/internal/ports"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 24 * time.Hour
	maxErrorBody    = 1024
)

// PerplexityClient implements ports.ContentProvider backed by an
// OpenAI-compatible chat completions endpoint with a response cache in front.
type PerplexityClient struct {
	endpoint     string
	apiKey       string
	systemPrompt string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client

	cache    ports.ResponseCache
	cacheTTL time.Duration
	metrics  ports.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.ContentProvider = (*PerplexityClient)(nil)

// Options carries the collaborators of the client; all are optional.
type Options struct {
	Cache      ports.ResponseCache
	CacheTTL   time.Duration
	Metrics    ports.Metrics
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// NewPerplexityClient builds a client from configuration.
func NewPerplexityClient(cfg config.ProviderConfig, opts Options) *PerplexityClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &PerplexityClient{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient:   httpClient,
		cache:        opts.Cache,
		cacheTTL:     ttl,
		metrics:      opts.Metrics,
		logger:       log,
		now:          time.Now,
	}
}

// Query asks the provider about query. Missing credentials, transport
// failures and error statuses yield (nil, nil); only cache store failures
// are returned as errors.
func (c *PerplexityClient) Query(ctx context.Context, query, model string) (*domain.ChatResponse, error) {
	if c.apiKey == "" {
		c.logger.Warn("perplexity api key not configured, skipping query")
		return nil, nil
	}

	key := cache.KeyFor(query, model, c.now())
	if c.cache != nil {
		payload, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read response cache: %w", err)
		}
		if ok {
			resp, err := domain.DecodeChatResponse(payload)
			if err == nil {
				c.count("cache.hit")
				return resp, nil
			}
			c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		}
		c.count("cache.miss")
	}

	raw, err := c.post(ctx, query, model)
	if err != nil {
		c.logger.Error("perplexity request failed", "query", query, "error", err)
		c.count("provider.errors")
		return nil, nil
	}

	resp, err := domain.DecodeChatResponse(raw)
	if err != nil {
		c.logger.Error("decode perplexity response", "query", query, "error", err)
		c.count("provider.errors")
		return nil, nil
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, raw, c.cacheTTL); err != nil {
			return nil, fmt.Errorf("write response cache: %w", err)
		}
	}

	return resp, nil
}

func (c *PerplexityClient) post(ctx context.Context, query, model string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []domain.ChatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: query},
		},
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal perplexity payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("perplexity error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

func (c *PerplexityClient) count(name string) {
	if c.metrics != nil {
		c.metrics.Count(name, 1)
	}
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return config.DefaultSystemPrompt
	}
	return prompt
}
