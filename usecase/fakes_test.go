package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// reply scripts one candidate: deltas are streamed in order, then err is
// returned.
type reply struct {
	deltas []string
	err    error
}

type fakeLlm struct {
	mu       sync.Mutex
	ready    error
	replies  map[domain.Candidate]reply
	calls    []domain.Candidate
	requests []domain.GenerationRequest
}

func newFakeLlm(replies map[domain.Candidate]reply) *fakeLlm {
	return &fakeLlm{replies: replies}
}

func (f *fakeLlm) Ready() error { return f.ready }

func (f *fakeLlm) record(req domain.GenerationRequest) reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Model)
	f.requests = append(f.requests, req)
	r, ok := f.replies[req.Model]
	if !ok {
		return reply{err: errors.New("unknown model")}
	}
	return r
}

func (f *fakeLlm) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	r := f.record(req)
	if r.err != nil {
		return "", r.err
	}
	var text string
	for _, d := range r.deltas {
		text += d
	}
	return text, nil
}

func (f *fakeLlm) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	r := f.record(req)
	var text string
	for _, d := range r.deltas {
		if err := ctx.Err(); err != nil {
			return text, err
		}
		text += d
		if err := onDelta(d); err != nil {
			return text, err
		}
	}
	return text, r.err
}

func (f *fakeLlm) Calls() []domain.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Candidate(nil), f.calls...)
}

type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Emit(e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

type fakeBackend struct {
	name    string
	results []domain.SearchResult
	err     error
	delay   time.Duration
	panics  bool
}

func (b fakeBackend) Name() string { return b.name }

func (b fakeBackend) Search(ctx context.Context, query string, locale language.Tag) ([]domain.SearchResult, error) {
	if b.panics {
		panic("backend exploded")
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.results, b.err
}

type passthroughSanitizer struct {
	validImage bool
}

func (s passthroughSanitizer) Sanitize(text string) string { return text }

func (s passthroughSanitizer) ValidateImage(string) bool { return s.validImage }

type staticPrompts string

func (p staticPrompts) Build(domain.PromptOptions) string { return string(p) }

func rateLimitedErr(c domain.Candidate) error {
	return &domain.ProviderError{Candidate: c, StatusCode: 429, Message: "rate limited"}
}
