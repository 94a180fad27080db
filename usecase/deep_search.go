package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

// EvidenceLimit is how many ranked results are spliced into the prompt.
const EvidenceLimit = 8

// DeepSearch augments generation with ranked web-search evidence.
type DeepSearch struct {
	aggregator   *Aggregator
	orchestrator *Orchestrator
}

func NewDeepSearch(aggregator *Aggregator, orchestrator *Orchestrator) *DeepSearch {
	return &DeepSearch{aggregator: aggregator, orchestrator: orchestrator}
}

// EvidenceBlock numbers the first limit results as "[n] title: snippet".
func EvidenceBlock(results []domain.SearchResult, limit int) string {
	if len(results) > limit {
		results = results[:limit]
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("[%d] %s: %s", i+1, r.Title, r.Snippet)
	}
	return strings.Join(lines, "\n")
}

// DeepSearchPrompt picks the localized template for question, with or
// without evidence.
func DeepSearchPrompt(locale language.Tag, question, evidence string) string {
	arabic := locale == language.Arabic
	switch {
	case arabic && evidence != "":
		return fmt.Sprintf("بناءً على نتائج البحث التالية، قدم إجابة شاملة ودقيقة:\n\n%s\n\nالسؤال: %s\n\nملاحظة: قدم إجابة مفصلة باللغة العربية مع الإشارة للمصادر عند الحاجة.", evidence, question)
	case arabic:
		return fmt.Sprintf("%s\n\nملاحظة: قدم إجابة مفيدة باللغة العربية.", question)
	case evidence != "":
		return fmt.Sprintf("Based on the following search results, provide a comprehensive and accurate answer:\n\n%s\n\nQuestion: %s\n\nNote: Provide a detailed answer and reference sources when appropriate.", evidence, question)
	default:
		return fmt.Sprintf("%s\n\nNote: Provide a helpful answer.", question)
	}
}

type DeepSearchResult struct {
	Result
	Sources []domain.SearchResult
}

// Run searches, emits the sources event when streaming, and generates the
// answer. The caller owns the terminal done event.
func (d *DeepSearch) Run(ctx context.Context, p Prepared, sink domain.Sink) (DeepSearchResult, error) {
	query := strings.TrimSpace(lastUserContent(p.Messages))

	sources := d.aggregator.Aggregate(ctx, query, p.Locale)
	log.WithCtx(ctx).Info("🔎 Deep search sources ranked",
		zap.Int("count", len(sources)),
		zap.String("locale", p.Locale.String()))

	if sink != nil && len(sources) > 0 {
		if err := sink.Emit(domain.SourcesEvent(sources)); err != nil {
			return DeepSearchResult{Sources: sources}, fmt.Errorf("emitting sources: %w", err)
		}
	}

	prompt := DeepSearchPrompt(p.Locale, query, EvidenceBlock(sources, EvidenceLimit))

	preferred := p.Model
	if preferred == "" {
		if defaults := d.orchestrator.Defaults(); len(defaults) > 0 {
			preferred = defaults[0]
		}
	}

	res, err := d.orchestrator.Generate(ctx, GenerateInput{
		Messages:     []domain.ChatMessage{{Role: domain.UserRole, Content: prompt}},
		Preferred:    preferred,
		SystemPrompt: p.SystemPrompt,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
		Locale:       p.Locale,
		Streaming:    sink != nil,
		Sink:         sink,
	})
	return DeepSearchResult{Result: res, Sources: sources}, err
}
