package domain

import (
	"context"

	"golang.org/x/text/language"
)

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Favicon string `json:"favicon"`
	Score   int    `json:"score"`
}

// SearchBackend is one live web-search source. Implementations may fail or
// time out; the aggregator isolates them from each other.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, locale language.Tag) ([]SearchResult, error)
}
