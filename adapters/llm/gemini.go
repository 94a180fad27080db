package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// GeminiPrefix routes a candidate to the native Gemini API,
// e.g. "gemini:gemini-2.0-flash-001".
const GeminiPrefix = "gemini:"

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Ready() error {
	if g == nil || g.client == nil {
		return domain.ErrNotConfigured
	}
	return nil
}

func geminiModel(c domain.Candidate) string {
	return strings.TrimPrefix(string(c), GeminiPrefix)
}

func geminiContents(messages []domain.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" || msg.Role == domain.SystemRole {
			continue
		}
		role := "model"
		if msg.Role == domain.UserRole {
			role = "user"
		}
		var parts []*genai.Part
		if mime, data, err := parseDataURL(msg.Image); err == nil {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
		}
		parts = append(parts, &genai.Part{Text: text})
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func geminiConfig(req domain.GenerationRequest) *genai.GenerateContentConfig {
	temperature := float32(req.Temperature)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
		Temperature:       &temperature,
		MaxOutputTokens:   int32(req.MaxTokens),
	}
}

func (g *GeminiClient) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, geminiModel(req.Model), geminiContents(req.Messages), geminiConfig(req))
	if err != nil {
		return "", geminiError(req.Model, err)
	}
	return resp.Text(), nil
}

func (g *GeminiClient) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, geminiModel(req.Model), geminiContents(req.Messages), geminiConfig(req)) {
		if err != nil {
			return full.String(), geminiError(req.Model, err)
		}
		delta := stream.StripCJK(resp.Text())
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
	return full.String(), nil
}

func geminiError(candidate domain.Candidate, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{Candidate: candidate, StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &domain.ProviderError{Candidate: candidate, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
