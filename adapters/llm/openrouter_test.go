package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

func TestBuildRequest(t *testing.T) {
	body := buildRequest(domain.GenerationRequest{
		Model:        "google/gemini-2.0-flash-exp:free",
		SystemPrompt: "be nice",
		Messages: []domain.ChatMessage{
			{Role: domain.UserRole, Content: " hi "},
			{Role: domain.AssistantRole, Content: "   "},
			{Role: domain.UserRole, Content: "what is this", Image: "data:image/png;base64,AAAA"},
		},
		Temperature: 0.7,
		MaxTokens:   100,
	}, true)

	require.Len(t, body.Messages, 3)
	assert.Equal(t, chatMessage{Role: "system", Content: "be nice"}, body.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "hi"}, body.Messages[1])

	parts, ok := body.Messages[2].Content.([]contentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[0].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[0].ImageURL.URL)
	assert.Equal(t, contentPart{Type: "text", Text: "what is this"}, parts[1])

	assert.True(t, body.Stream)
	assert.Equal(t, 100, body.MaxTokens)
}

func TestOpenRouterComplete(t *testing.T) {
	var gotHeader http.Header
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"pong"}}]}`)
	}))
	defer server.Close()

	c := NewOpenRouterClient("sk-test",
		WithBaseURL(server.URL+"/"),
		WithReferer("https://chat.example"),
		WithTitle("Test Chat"),
	)

	text, err := c.Complete(context.Background(), domain.GenerationRequest{
		Model:    "model-a",
		Messages: []domain.ChatMessage{{Role: domain.UserRole, Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", text)

	assert.Equal(t, "Bearer sk-test", gotHeader.Get("Authorization"))
	assert.Equal(t, "https://chat.example", gotHeader.Get("HTTP-Referer"))
	assert.Equal(t, "Test Chat", gotHeader.Get("X-Title"))
	assert.Equal(t, "model-a", gotBody["model"])
	assert.NotContains(t, gotBody, "stream")
}

func TestOpenRouterErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantCode    int
		wantMessage string
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Rate limit exceeded"}}`, 429, 429, "Rate limit exceeded", true},
		{"string code", http.StatusBadRequest, `{"error":{"code":"bad_model","message":"unknown model"}}`, 400, 0, "unknown model", false},
		{"plain body", http.StatusBadGateway, `upstream down`, 502, 0, "Bad Gateway", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := NewOpenRouterClient("sk-test", WithBaseURL(server.URL))
			_, err := c.Complete(context.Background(), domain.GenerationRequest{Model: "model-a"})

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, domain.Candidate("model-a"), perr.Candidate)
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, tt.wantMessage, perr.Message)
			assert.Equal(t, tt.rateLimited, domain.IsRateLimited(err))
		})
	}
}

func TestOpenRouterNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := NewOpenRouterClient("k", WithBaseURL(server.URL)).Complete(context.Background(), domain.GenerationRequest{Model: "m"})
	var perr *domain.ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestOpenRouterStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
			w.(http.Flusher).Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewOpenRouterClient("k", WithBaseURL(server.URL))
	var deltas []string
	text, err := c.Stream(context.Background(), domain.GenerationRequest{Model: "m"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestOpenRouterStreamInBandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"error\":{\"code\":429,\"message\":\"busy\"}}\n\n")
	}))
	defer server.Close()

	_, err := NewOpenRouterClient("k", WithBaseURL(server.URL)).Stream(context.Background(), domain.GenerationRequest{Model: "model-b"}, nil)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.Candidate("model-b"), perr.Candidate)
	assert.True(t, perr.RateLimited())
}

func TestOpenRouterReady(t *testing.T) {
	assert.ErrorIs(t, NewOpenRouterClient("").Ready(), domain.ErrNotConfigured)
	assert.NoError(t, NewOpenRouterClient("k").Ready())
}
