package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const DefaultMaxTokens = 4000

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages         []domain.ChatMessage `json:"messages"`
	Model            domain.Candidate     `json:"model,omitempty"`
	DeepThinking     bool                 `json:"deepThinking,omitempty"`
	EnhancedAnalysis bool                 `json:"enhancedAnalysis,omitempty"`
	DeepSearch       bool                 `json:"deepSearch,omitempty"`
	IsVoiceMode      bool                 `json:"isVoiceMode,omitempty"`
	Streaming        bool                 `json:"streaming,omitempty"`
	FocusMode        domain.FocusMode     `json:"focusMode,omitempty"`
}

type ChatResponse struct {
	Message        string                `json:"message"`
	Sources        []domain.SearchResult `json:"sources,omitempty"`
	IsSearchResult bool                  `json:"isSearchResult,omitempty"`
	Model          domain.Candidate      `json:"model,omitempty"`
}

// Prepared is a validated, sanitized request ready for orchestration.
type Prepared struct {
	Messages     []domain.ChatMessage
	Model        domain.Candidate
	DeepSearch   bool
	Locale       language.Tag
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

type ChatService struct {
	orchestrator *Orchestrator
	deepSearch   *DeepSearch
	sanitizer    domain.Sanitizer
	prompts      domain.PromptBuilder
}

func NewChatService(orchestrator *Orchestrator, deepSearch *DeepSearch, sanitizer domain.Sanitizer, prompts domain.PromptBuilder) *ChatService {
	return &ChatService{
		orchestrator: orchestrator,
		deepSearch:   deepSearch,
		sanitizer:    sanitizer,
		prompts:      prompts,
	}
}

// Prepare validates and sanitizes req. Any error is a *domain.ValidationError.
func (s *ChatService) Prepare(req ChatRequest) (Prepared, error) {
	locale := language.Arabic
	if len(req.Messages) > 0 {
		locale = DetectLocale(lastUserContent(req.Messages))
	}

	if len(req.Messages) == 0 {
		return Prepared{}, &domain.ValidationError{Locale: locale, Field: "messages", Reason: "must not be empty"}
	}

	focus := req.FocusMode
	if focus == "" {
		focus = domain.FocusGeneral
	}
	if !focus.Valid() {
		return Prepared{}, &domain.ValidationError{Locale: locale, Field: "focusMode", Reason: "unknown focus mode " + string(focus)}
	}

	messages := make([]domain.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "" {
			msg.Role = domain.UserRole
		}
		if !msg.Role.Valid() {
			return Prepared{}, &domain.ValidationError{Locale: locale, Field: "messages.role", Reason: "unknown role " + string(msg.Role)}
		}
		msg.Content = strings.TrimSpace(s.sanitizer.Sanitize(msg.Content))
		if msg.Content == "" {
			return Prepared{}, &domain.ValidationError{Locale: locale, Field: "messages.content", Reason: "must not be blank"}
		}
		if msg.Image != "" && !s.sanitizer.ValidateImage(msg.Image) {
			return Prepared{}, &domain.ValidationError{Locale: locale, Field: "messages.image", Reason: "invalid image payload", Key: i18n.InvalidImage}
		}
		messages = append(messages, msg)
	}

	locale = DetectLocale(lastUserContent(messages))

	systemPrompt := strings.TrimSpace(s.prompts.Build(domain.PromptOptions{
		VoiceMode:        req.IsVoiceMode,
		DeepThinking:     req.DeepThinking,
		EnhancedAnalysis: req.EnhancedAnalysis,
		Locale:           locale,
		Focus:            focus,
	}))
	if systemPrompt == "" {
		systemPrompt = i18n.Text(locale, i18n.DefaultAssistant)
	}

	return Prepared{
		Messages:     messages,
		Model:        domain.Candidate(strings.TrimSpace(string(req.Model))),
		DeepSearch:   req.DeepSearch,
		Locale:       locale,
		SystemPrompt: systemPrompt,
		Temperature:  temperature(req.IsVoiceMode, req.DeepThinking),
		MaxTokens:    DefaultMaxTokens,
	}, nil
}

func temperature(voice, deepThinking bool) float64 {
	switch {
	case voice:
		return 0.6
	case deepThinking:
		return 0.9
	default:
		return 0.7
	}
}

// Ready lets transports reject an unconfigured gateway before they commit
// to a streaming response.
func (s *ChatService) Ready(p Prepared) error {
	return s.orchestrator.Ready(p.Locale)
}

// Chat answers a prepared request in one shot.
func (s *ChatService) Chat(ctx context.Context, p Prepared) (ChatResponse, error) {
	if p.DeepSearch {
		res, err := s.deepSearch.Run(ctx, p, nil)
		if err != nil {
			return ChatResponse{}, err
		}
		return ChatResponse{
			Message:        res.Text,
			Sources:        res.Sources,
			IsSearchResult: true,
			Model:          res.Model,
		}, nil
	}

	res, err := s.orchestrator.Generate(ctx, GenerateInput{
		Messages:     p.Messages,
		Preferred:    p.Model,
		SystemPrompt: p.SystemPrompt,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
		Locale:       p.Locale,
	})
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{Message: res.Text, Model: res.Model}, nil
}

// Stream answers a prepared request through sink. Whatever happens, exactly
// one done event is emitted last; failures are reported as an error event
// right before it.
func (s *ChatService) Stream(ctx context.Context, p Prepared, sink domain.Sink) (err error) {
	defer func() {
		if err != nil {
			if emitErr := sink.Emit(domain.ErrorEvent(UserMessage(err, p.Locale, p.DeepSearch))); emitErr != nil {
				log.WithCtx(ctx).Debug("Failed to emit error event", zap.Error(emitErr))
			}
		}
		if emitErr := sink.Emit(domain.DoneEvent()); emitErr != nil {
			log.WithCtx(ctx).Debug("Failed to emit done event", zap.Error(emitErr))
		}
	}()

	if p.DeepSearch {
		_, err = s.deepSearch.Run(ctx, p, sink)
		return err
	}

	res, err := s.orchestrator.Generate(ctx, GenerateInput{
		Messages:     p.Messages,
		Preferred:    p.Model,
		SystemPrompt: p.SystemPrompt,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
		Locale:       p.Locale,
		Streaming:    true,
		Sink:         sink,
	})
	if err != nil {
		return err
	}
	return sink.Emit(domain.ModelEvent(res.Model))
}

type localized interface {
	Message() string
}

// UserMessage turns err into the non-technical text shown to the caller.
func UserMessage(err error, locale language.Tag, deepSearch bool) string {
	var l localized
	if errors.As(err, &l) {
		return l.Message()
	}
	switch {
	case errors.Is(err, domain.ErrStreamInterrupted):
		return i18n.Text(locale, i18n.StreamFailed)
	case deepSearch:
		return i18n.Text(locale, i18n.SearchFailed)
	default:
		return i18n.Text(locale, i18n.InternalError)
	}
}
