package usecase

import (
	"fmt"
	"strings"

	"FeedIngestor/internal/domain"
)

var fallbackQueries = []string{
	"What are the top technology news stories today?",
	"What are the major world events happening right now?",
	"What are the latest developments in AI and machine learning?",
	"What are the trending topics in science and research?",
	"What are the key business and finance news today?",
}

// DeriveForUser builds one query per active category. Keywords take
// precedence over the category name. Without active categories it returns
// the fallback set.
func DeriveForUser(categories []domain.UserCategory) []domain.Query {
	queries := make([]domain.Query, 0, len(categories))
	for _, category := range categories {
		if !category.IsActive {
			continue
		}

		var text string
		if len(category.Keywords) > 0 {
			text = fmt.Sprintf("What are the latest news and developments about %s?", strings.Join(category.Keywords, ", "))
		} else {
			text = fmt.Sprintf("What are the latest news and developments in %s?", category.Name)
		}

		categoryID, userID := category.ID, category.UserID
		queries = append(queries, domain.Query{
			Text:         text,
			CategoryID:   &categoryID,
			CategoryName: category.Name,
			UserID:       &userID,
		})
	}
	if len(queries) == 0 {
		return DeriveFallback()
	}
	return queries
}

// DeriveFallback returns the fixed general-interest query set.
func DeriveFallback() []domain.Query {
	queries := make([]domain.Query, 0, len(fallbackQueries))
	for _, text := range fallbackQueries {
		queries = append(queries, domain.Query{Text: text, CategoryName: domain.GeneralCategory})
	}
	return queries
}

// QueriesFromText wraps plain query strings as General queries.
func QueriesFromText(texts []string) []domain.Query {
	if texts == nil {
		return nil
	}
	queries := make([]domain.Query, 0, len(texts))
	for _, text := range texts {
		queries = append(queries, domain.Query{Text: text, CategoryName: domain.GeneralCategory})
	}
	return queries
}
