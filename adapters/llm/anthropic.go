package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// AnthropicPrefix routes a candidate to the native Anthropic API,
// e.g. "anthropic:claude-3-5-haiku-latest".
const AnthropicPrefix = "anthropic:"

type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicClient{client: &client}
}

func (a *AnthropicClient) Ready() error {
	if a == nil || a.client == nil {
		return domain.ErrNotConfigured
	}
	return nil
}

func anthropicParams(req domain.GenerationRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" || msg.Role == domain.SystemRole {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		if mime, data, err := parseDataURL(msg.Image); err == nil {
			blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(data)))
		}
		blocks = append(blocks, anthropic.NewTextBlock(text))
		if msg.Role == domain.UserRole {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(strings.TrimPrefix(string(req.Model), AnthropicPrefix)),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.SystemPrompt}}
	}
	return params
}

func (a *AnthropicClient) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return "", anthropicError(req.Model, err)
	}
	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func (a *AnthropicClient) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	s := a.client.Messages.NewStreaming(ctx, anthropicParams(req))
	defer s.Close()

	var full strings.Builder
	for s.Next() {
		event, ok := s.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok || event.Delta.Type != "text_delta" {
			continue
		}
		delta := stream.StripCJK(event.Delta.Text)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta == nil {
			continue
		}
		if err := onDelta(delta); err != nil {
			return full.String(), err
		}
	}
	if err := s.Err(); err != nil {
		return full.String(), anthropicError(req.Model, err)
	}
	return full.String(), nil
}

func anthropicError(candidate domain.Candidate, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{Candidate: candidate, StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("anthropic messages: %w", err)
}
