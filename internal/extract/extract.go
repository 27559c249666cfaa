package extract

import (
	"fmt"

	"FeedIngestor/internal/domain"
)

// Extractor turns a provider response into candidate content items. It must
// never fail: unexpected input yields an empty list.
type Extractor interface {
	Name() string
	Extract(resp *domain.ChatResponse) []domain.ContentItem
}

// Registry keeps a mapping from extractor names to their implementations.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]Extractor{}}
}

// Register adds or replaces an extractor implementation.
func (r *Registry) Register(extractor Extractor) {
	if r.extractors == nil {
		r.extractors = map[string]Extractor{}
	}
	r.extractors[extractor.Name()] = extractor
}

// Resolve returns an extractor by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Extractor, error) {
	if extractor, ok := r.extractors[name]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("extractor %s is not registered", name)
}
