package extract

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"FeedIngestor/internal/domain"
)

// HeuristicName identifies the line-based extractor.
const HeuristicName = "heuristic"

// summaryMinLength is the rune count a line must exceed to count as a summary.
const summaryMinLength = 50

// Heuristic segments the response text line by line. A blank line closes the
// open item, a **bold** line opens a titled item, an http(s) line sets the url
// and a long line sets the summary.
type Heuristic struct {
	logger *slog.Logger
}

var _ Extractor = (*Heuristic)(nil)

// NewHeuristic builds the default extractor; log may be nil.
func NewHeuristic(log *slog.Logger) *Heuristic {
	return &Heuristic{logger: log}
}

// Name identifies the strategy inside the registry.
func (h *Heuristic) Name() string {
	return HeuristicName
}

// Extract implements Extractor.
func (h *Heuristic) Extract(resp *domain.ChatResponse) (items []domain.ContentItem) {
	defer func() {
		if r := recover(); r != nil {
			if h.logger != nil {
				h.logger.Error("extract content", "error", r)
			}
			items = nil
		}
	}()

	content, ok := resp.FirstContent()
	if !ok {
		return nil
	}
	return segment(content)
}

func segment(content string) []domain.ContentItem {
	var (
		items   []domain.ContentItem
		current domain.ContentItem
		open    bool
	)

	flush := func() {
		if open {
			items = append(items, current)
		}
		current = domain.ContentItem{}
		open = false
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"):
			flush()
			current.Title = strings.Trim(line, "*")
			open = true
		case strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://"):
			current.URL = line
			open = true
		case utf8.RuneCountInString(line) > summaryMinLength:
			current.Summary = line
			open = true
		}
	}
	flush()

	return items
}
