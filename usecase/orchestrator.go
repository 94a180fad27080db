package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

var errEmptyResponse = errors.New("empty response")

// Clock abstracts waiting so backoff can be tested without wall-clock delays.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy bounds the fallback loop.
type RetryPolicy struct {
	// MaxAttempts caps the number of candidates tried; zero means the whole
	// list.
	MaxAttempts int
	// Backoff returns the wait after the n-th failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// CallTimeout bounds every single generation call.
	CallTimeout time.Duration
}

func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff:     FixedBackoff(time.Second),
		CallTimeout: 60 * time.Second,
	}
}

// Orchestrator drives sequential generation attempts over an ordered
// candidate list until one succeeds.
type Orchestrator struct {
	llm           domain.Llm
	defaults      []domain.Candidate
	auto          AutoSelector
	policy        RetryPolicy
	clock         Clock
	onRateLimited func(ctx context.Context, candidate domain.Candidate)
}

type OrchestratorOption func(*Orchestrator)

func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		if p.Backoff == nil {
			p.Backoff = FixedBackoff(0)
		}
		o.policy = p
	}
}

func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithAutoSelector(s AutoSelector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.auto = s
	}
}

// WithRateLimitHook registers a callback invoked whenever a candidate
// answers with an upstream rate limit. Traversal continues regardless.
func WithRateLimitHook(fn func(ctx context.Context, candidate domain.Candidate)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onRateLimited = fn
	}
}

func NewOrchestrator(llm domain.Llm, defaults []domain.Candidate, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		llm:      llm,
		defaults: dedupCandidates(defaults),
		auto: AutoSelector{
			Classifier: NewKeywordClassifier(),
			Table:      DefaultCategoryTable(),
		},
		policy: DefaultRetryPolicy(),
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ready returns a *domain.ConfigurationError when no upstream call can be
// made at all.
func (o *Orchestrator) Ready(locale language.Tag) error {
	if err := o.llm.Ready(); err != nil {
		return &domain.ConfigurationError{Locale: locale, Err: err}
	}
	return nil
}

// Defaults returns the built-in candidate list.
func (o *Orchestrator) Defaults() []domain.Candidate {
	return append([]domain.Candidate(nil), o.defaults...)
}

// BuildCandidates puts the preferred candidate first and appends the defaults
// without duplicates. "auto" lets the selector pick the first candidate from
// text.
func BuildCandidates(preferred domain.Candidate, defaults []domain.Candidate, text string, auto AutoSelector) []domain.Candidate {
	if preferred == domain.AutoCandidate {
		preferred = ""
		if auto.Classifier != nil {
			if c, ok := auto.Select(text); ok {
				preferred = c
			}
		}
	}
	if preferred == "" {
		return dedupCandidates(defaults)
	}
	return dedupCandidates(append([]domain.Candidate{preferred}, defaults...))
}

func dedupCandidates(in []domain.Candidate) []domain.Candidate {
	seen := make(map[domain.Candidate]bool, len(in))
	out := make([]domain.Candidate, 0, len(in))
	for _, c := range in {
		c = domain.Candidate(strings.TrimSpace(string(c)))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

type GenerateInput struct {
	Messages     []domain.ChatMessage
	Preferred    domain.Candidate
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Locale       language.Tag
	Streaming    bool
	// Sink receives text deltas when Streaming is set.
	Sink domain.Sink
}

type Result struct {
	Text     string
	Model    domain.Candidate
	Attempts []domain.Attempt
}

// Generate tries candidates strictly in order and returns the first
// non-empty answer. It never runs two attempts concurrently.
func (o *Orchestrator) Generate(ctx context.Context, in GenerateInput) (Result, error) {
	logger := log.WithCtx(ctx)

	if err := o.Ready(in.Locale); err != nil {
		logger.Error("❌ Upstream provider not configured", zap.Error(err))
		return Result{}, err
	}

	candidates := BuildCandidates(in.Preferred, o.defaults, lastUserContent(in.Messages), o.auto)
	if o.policy.MaxAttempts > 0 && len(candidates) > o.policy.MaxAttempts {
		candidates = candidates[:o.policy.MaxAttempts]
	}

	var (
		attempts    []domain.Attempt
		lastErr     error
		rateLimited bool
	)
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, err
		}

		logger.Info("Trying model",
			zap.Int("attempt", i+1),
			zap.Int("of", len(candidates)),
			zap.String("model", string(candidate)))

		start := time.Now()
		text, forwarded, err := o.attempt(ctx, candidate, in)
		latency := time.Since(start)

		if err == nil && strings.TrimSpace(text) != "" {
			attempts = append(attempts, domain.Attempt{Candidate: candidate, Outcome: domain.OutcomeSuccess, Latency: latency})
			logger.Info("✅ Model succeeded", zap.String("model", string(candidate)), zap.Duration("latency", latency))
			return Result{Text: text, Model: candidate, Attempts: attempts}, nil
		}
		if err == nil {
			err = errEmptyResponse
		}
		if forwarded && ctx.Err() == nil {
			// The next candidate continues on the same stream.
			err = fmt.Errorf("candidate %s: %w: %w", candidate, domain.ErrStreamInterrupted, err)
		}
		lastErr = err

		switch {
		case ctx.Err() != nil:
			attempts = append(attempts, domain.Attempt{Candidate: candidate, Outcome: domain.OutcomeFatal, Latency: latency, Err: err})
			return Result{Attempts: attempts}, ctx.Err()
		case domain.IsRateLimited(err):
			rateLimited = true
			attempts = append(attempts, domain.Attempt{Candidate: candidate, Outcome: domain.OutcomeRateLimited, Latency: latency, Err: err})
			if o.onRateLimited != nil {
				o.onRateLimited(ctx, candidate)
			}
		default:
			attempts = append(attempts, domain.Attempt{Candidate: candidate, Outcome: domain.OutcomeTransient, Latency: latency, Err: err})
		}
		logger.Warn("Model failed",
			zap.String("model", string(candidate)),
			zap.String("outcome", string(attempts[len(attempts)-1].Outcome)),
			zap.Duration("latency", latency),
			zap.Bool("partial", forwarded),
			zap.Error(err))

		if i < len(candidates)-1 {
			if err := o.clock.Sleep(ctx, o.policy.Backoff(i+1)); err != nil {
				return Result{Attempts: attempts}, err
			}
		}
	}

	return Result{Attempts: attempts}, &domain.ExhaustedError{
		Locale:      in.Locale,
		Attempts:    attempts,
		RateLimited: rateLimited,
		Last:        lastErr,
	}
}

// attempt issues one bounded call. forwarded reports whether visible text
// already reached the sink.
func (o *Orchestrator) attempt(ctx context.Context, candidate domain.Candidate, in GenerateInput) (string, bool, error) {
	callCtx := ctx
	if o.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.policy.CallTimeout)
		defer cancel()
	}

	req := domain.GenerationRequest{
		Model:        candidate,
		SystemPrompt: in.SystemPrompt,
		Messages:     in.Messages,
		Temperature:  in.Temperature,
		MaxTokens:    in.MaxTokens,
	}

	if !in.Streaming || in.Sink == nil {
		text, err := o.llm.Complete(callCtx, req)
		return text, false, err
	}

	forwarded := false
	text, err := o.llm.Stream(callCtx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		if strings.TrimSpace(delta) != "" {
			forwarded = true
		}
		return in.Sink.Emit(domain.TextEvent(delta))
	})
	return text, forwarded, err
}

func lastUserContent(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if role := messages[i].Role; role == domain.UserRole || role == "" {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
