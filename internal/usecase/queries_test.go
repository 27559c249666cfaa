package usecase

import (
	"testing"

	"FeedIngestor/internal/domain"
)

func TestDeriveForUserKeywordsAndName(t *testing.T) {
	t.Parallel()

	categories := []domain.UserCategory{
		{ID: 3, UserID: 7, Name: "Technology", Keywords: []string{"AI", "robotics"}, IsActive: true},
		{ID: 4, UserID: 7, Name: "Sports", IsActive: true},
		{ID: 5, UserID: 7, Name: "Cooking", IsActive: false},
	}

	queries := DeriveForUser(categories)
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}

	if want := "What are the latest news and developments about AI, robotics?"; queries[0].Text != want {
		t.Fatalf("unexpected keyword query: %q", queries[0].Text)
	}
	if want := "What are the latest news and developments in Sports?"; queries[1].Text != want {
		t.Fatalf("unexpected name query: %q", queries[1].Text)
	}
	if queries[0].CategoryID == nil || *queries[0].CategoryID != 3 {
		t.Fatalf("expected category id 3, got %v", queries[0].CategoryID)
	}
	if queries[1].UserID == nil || *queries[1].UserID != 7 {
		t.Fatalf("expected user id 7, got %v", queries[1].UserID)
	}
	if queries[1].Category() != "Sports" {
		t.Fatalf("unexpected category %q", queries[1].Category())
	}
}

func TestDeriveForUserWithoutActiveCategoriesFallsBack(t *testing.T) {
	t.Parallel()

	got := DeriveForUser([]domain.UserCategory{{ID: 1, UserID: 2, Name: "Off", IsActive: false}})
	want := DeriveFallback()
	if len(got) != len(want) {
		t.Fatalf("expected %d fallback queries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Text != want[i].Text {
			t.Fatalf("query %d: expected %q, got %q", i, want[i].Text, got[i].Text)
		}
	}
}

func TestDeriveFallback(t *testing.T) {
	t.Parallel()

	queries := DeriveFallback()
	if len(queries) != 5 {
		t.Fatalf("expected 5 fallback queries, got %d", len(queries))
	}
	for _, q := range queries {
		if q.CategoryName != domain.GeneralCategory {
			t.Fatalf("expected General category, got %q", q.CategoryName)
		}
		if q.UserID != nil || q.CategoryID != nil {
			t.Fatalf("fallback query carries ids: %+v", q)
		}
	}
	if queries[0].Text != "What are the top technology news stories today?" {
		t.Fatalf("unexpected first query %q", queries[0].Text)
	}
}

func TestQueriesFromText(t *testing.T) {
	t.Parallel()

	if QueriesFromText(nil) != nil {
		t.Fatalf("nil input must stay nil")
	}

	queries := QueriesFromText([]string{"custom"})
	if len(queries) != 1 || queries[0].Text != "custom" || queries[0].Category() != domain.GeneralCategory {
		t.Fatalf("unexpected queries %+v", queries)
	}
}
