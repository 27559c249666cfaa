package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// ErrMalformedItem marks a candidate that cannot be stored.
var ErrMalformedItem = errors.New("malformed item")

const (
	untitled       = "Untitled"
	maxTitleLength = 500
	// maxURLLength matches the feed_items.url column width.
	maxURLLength = 1000
)

// ItemUpserter turns extracted candidates into feed items and persists them
// with create-or-update semantics keyed by (title, data source).
type ItemUpserter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewItemUpserter builds an upserter; now defaults to time.Now.
func NewItemUpserter(log *slog.Logger, now func() time.Time) *ItemUpserter {
	if now == nil {
		now = time.Now
	}
	return &ItemUpserter{logger: log, now: now}
}

// Save persists items in one batch. Items that fail are logged and skipped;
// only a failure of the batch itself is returned.
func (u *ItemUpserter) Save(ctx context.Context, repo ports.ItemRepository, items []domain.ContentItem, source domain.DataSource, query domain.Query) (domain.Counts, error) {
	var counts domain.Counts
	if len(items) == 0 {
		return counts, nil
	}

	err := repo.Batch(ctx, func(w ports.ItemWriter) error {
		counts = domain.Counts{}
		for _, candidate := range items {
			counts.Processed++

			item, err := u.build(candidate, source, query)
			if err != nil {
				u.warn("skip feed item", "title", candidate.Title, "error", err)
				continue
			}

			created, err := w.Upsert(ctx, item)
			if err != nil {
				u.warn("save feed item", "title", item.Title, "error", err)
				continue
			}
			if created {
				counts.Created++
			} else {
				counts.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return domain.Counts{}, fmt.Errorf("save feed items: %w", err)
	}

	return counts, nil
}

func (u *ItemUpserter) build(candidate domain.ContentItem, source domain.DataSource, query domain.Query) (domain.FeedItem, error) {
	title := candidate.Title
	if title == "" {
		title = untitled
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return domain.FeedItem{}, fmt.Errorf("%w: title longer than %d characters", ErrMalformedItem, maxTitleLength)
	}
	// URL lines come straight from model prose ("https://x.com and others")
	// and are stored as written, only cut to fit the column.
	link := truncateRunes(candidate.URL, maxURLLength)

	category := query.Category()
	tags := []string{"ai", source.Name}
	if category != domain.GeneralCategory {
		tags = append(tags, strings.ToLower(category))
	}

	metadata := map[string]any{}
	if candidate.Title != "" {
		metadata["title"] = candidate.Title
	}
	if link != "" {
		metadata["url"] = link
	}
	if candidate.Summary != "" {
		metadata["summary"] = candidate.Summary
	}
	if query.UserID != nil {
		metadata["user_id"] = *query.UserID
		metadata["category_name"] = category
		if query.CategoryID != nil {
			metadata["user_category_id"] = *query.CategoryID
		} else {
			metadata["user_category_id"] = nil
		}
	}

	return domain.FeedItem{
		Title:        title,
		Summary:      candidate.Summary,
		URL:          link,
		Source:       source.DisplayName,
		DataSourceID: source.ID,
		Category:     category,
		Metadata:     metadata,
		Tags:         tags,
		PublishedAt:  u.now().UTC(),
	}, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func (u *ItemUpserter) warn(msg string, args ...any) {
	if u.logger != nil {
		u.logger.Warn(msg, args...)
	}
}
