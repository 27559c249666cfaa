package extract

import (
	"bytes"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"FeedIngestor/internal/domain"
)

// MarkdownName identifies the markdown-aware extractor.
const MarkdownName = "markdown"

var citationExpr = regexp.MustCompile(`\[(\d+)\]`)

// Markdown renders the response as markdown and reads items from the
// resulting block structure: headings and bold-only paragraphs open items,
// list entries are items of their own, links and citation markers give urls.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	logger *slog.Logger
}

var _ Extractor = (*Markdown)(nil)

// NewMarkdown builds the extractor; log may be nil.
func NewMarkdown(log *slog.Logger) *Markdown {
	return &Markdown{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
		logger: log,
	}
}

// Name identifies the strategy inside the registry.
func (m *Markdown) Name() string {
	return MarkdownName
}

// Extract implements Extractor.
func (m *Markdown) Extract(resp *domain.ChatResponse) (items []domain.ContentItem) {
	defer func() {
		if r := recover(); r != nil {
			m.warn("markdown extract panicked", "error", r)
			items = nil
		}
	}()

	content, ok := resp.FirstContent()
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(content), &buf); err != nil {
		m.warn("render markdown", "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(m.policy.SanitizeBytes(buf.Bytes())))
	if err != nil {
		m.warn("parse rendered markdown", "error", err)
		return nil
	}

	var (
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

	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			flush()
			current.Title = collapse(s.Text())
			open = true
		case "ul", "ol":
			flush()
			s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				current = listItem(li)
				open = !current.Empty()
				flush()
			})
		case "p":
			if title, ok := boldOnly(s); ok {
				flush()
				current.Title = title
				open = true
				return
			}
			if fillBlock(s, &current) {
				open = true
			}
		}
	})
	flush()

	if len(resp.Citations) > 0 {
		for i := range items {
			if items[i].URL == "" {
				items[i].URL = citationURL(items[i].Summary, resp.Citations)
			}
		}
	}

	return items
}

func (m *Markdown) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func boldOnly(p *goquery.Selection) (string, bool) {
	strong := p.ChildrenFiltered("strong")
	if strong.Length() != 1 {
		return "", false
	}
	text := collapse(p.Text())
	if text == "" || text != collapse(strong.Text()) {
		return "", false
	}
	return text, true
}

func fillBlock(s *goquery.Selection, item *domain.ContentItem) bool {
	filled := false
	if href, ok := s.Find("a[href]").First().Attr("href"); ok && isHTTP(href) && item.URL == "" {
		item.URL = href
		filled = true
	}
	text := collapse(s.Text())
	if isHTTP(text) && !strings.Contains(text, " ") {
		item.URL = text
		return true
	}
	if utf8.RuneCountInString(text) > summaryMinLength {
		item.Summary = text
		filled = true
	}
	return filled
}

func listItem(li *goquery.Selection) domain.ContentItem {
	var item domain.ContentItem
	text := collapse(li.Text())
	if strong := li.Find("strong").First(); strong.Length() > 0 {
		item.Title = collapse(strong.Text())
		text = strings.TrimSpace(strings.TrimPrefix(text, item.Title))
		text = strings.TrimLeft(text, ":-–— ")
	}
	if href, ok := li.Find("a[href]").First().Attr("href"); ok && isHTTP(href) {
		item.URL = href
	}
	if text != "" && text != item.URL {
		item.Summary = text
	}
	return item
}

func citationURL(text string, citations []string) string {
	match := citationExpr.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n < 1 || n > len(citations) {
		return ""
	}
	return citations[n-1]
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
