package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const (
	DefaultMaxResults     = 12
	DefaultBackendTimeout = 8 * time.Second
)

// Aggregator fans a query out to every search backend and merges whatever
// comes back with the synthesized fallback set.
type Aggregator struct {
	backends   []domain.SearchBackend
	timeout    time.Duration
	maxResults int
}

type AggregatorOption func(*Aggregator)

func WithBackendTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

func WithMaxResults(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.maxResults = n
	}
}

func NewAggregator(backends []domain.SearchBackend, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		backends:   backends,
		timeout:    DefaultBackendTimeout,
		maxResults: DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Backends returns the names of the configured backends.
func (a *Aggregator) Backends() []string {
	names := make([]string, len(a.backends))
	for i, b := range a.backends {
		names[i] = b.Name()
	}
	return names
}

// Aggregate never fails: a backend error only shrinks the live part of the
// result, and the fallback set is always present.
func (a *Aggregator) Aggregate(ctx context.Context, query string, locale language.Tag) []domain.SearchResult {
	perBackend := make([][]domain.SearchResult, len(a.backends))

	// Every goroutine returns nil so no backend can cancel the others.
	var g errgroup.Group
	for i, backend := range a.backends {
		g.Go(func() error {
			results, err := a.search(ctx, backend, query, locale)
			if err != nil {
				log.WithCtx(ctx).Warn("Search backend failed",
					zap.String("backend", backend.Name()),
					zap.Error(err))
				return nil
			}
			perBackend[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.SearchResult
	for _, results := range perBackend {
		merged = append(merged, results...)
	}
	merged = append(merged, FallbackSources(query)...)

	ranked := Rank(DedupByURL(merged), query)
	if a.maxResults > 0 && len(ranked) > a.maxResults {
		ranked = ranked[:a.maxResults]
	}
	return ranked
}

func (a *Aggregator) search(ctx context.Context, backend domain.SearchBackend, query string, locale language.Tag) (results []domain.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", backend.Name(), r)
		}
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return backend.Search(ctx, query, locale)
}

// DedupByURL keeps the first result for every URL.
func DedupByURL(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
