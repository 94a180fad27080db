package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

var conversation = []domain.ChatMessage{
	{Role: domain.SystemRole, Content: "ignored"},
	{Role: domain.UserRole, Content: "look", Image: "data:image/jpeg;base64,aGVsbG8="},
	{Role: domain.AssistantRole, Content: "a cat"},
	{Role: domain.UserRole, Content: "  "},
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents(conversation)

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "image/jpeg", contents[0].Parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("hello"), contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "look", contents[0].Parts[1].Text)
	assert.Equal(t, "model", contents[1].Role)
}

func TestGeminiConfig(t *testing.T) {
	cfg := geminiConfig(domain.GenerationRequest{SystemPrompt: "sys", Temperature: 0.5, MaxTokens: 256})

	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 0.5, *cfg.Temperature, 1e-6)
	assert.EqualValues(t, 256, cfg.MaxOutputTokens)
	assert.Equal(t, "gemini-2.0-flash", geminiModel("gemini:gemini-2.0-flash"))
}

func TestGeminiReadyWithoutClient(t *testing.T) {
	var g *GeminiClient
	assert.ErrorIs(t, g.Ready(), domain.ErrNotConfigured)
}

func TestAnthropicParams(t *testing.T) {
	params := anthropicParams(domain.GenerationRequest{
		Model:        "anthropic:claude-3-5-haiku-latest",
		SystemPrompt: "sys",
		Messages:     conversation,
		Temperature:  0.7,
	})

	assert.EqualValues(t, "claude-3-5-haiku-latest", params.Model)
	assert.EqualValues(t, 4096, params.MaxTokens)
	require.Len(t, params.Messages, 2)
	assert.EqualValues(t, "user", params.Messages[0].Role)
	assert.Len(t, params.Messages[0].Content, 2)
	assert.EqualValues(t, "assistant", params.Messages[1].Role)
	require.Len(t, params.System, 1)
	assert.Equal(t, "sys", params.System[0].Text)
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-ant", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	text, err := c.Complete(context.Background(), domain.GenerationRequest{
		Model:    "anthropic:claude-3-5-haiku-latest",
		Messages: []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
}

func TestAnthropicRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-ant", option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), domain.GenerationRequest{
		Model:    "anthropic:claude-3-5-haiku-latest",
		Messages: []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}},
	})

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.Candidate("anthropic:claude-3-5-haiku-latest"), perr.Candidate)
	assert.True(t, perr.RateLimited())
}
