package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const (
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	defaultTitle         = "AI Chat Assistant"
)

// OpenRouterClient talks to any OpenAI-compatible chat-completions endpoint.
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	referer    string
	title      string
	httpClient *http.Client
}

type Option func(*OpenRouterClient)

func WithBaseURL(baseURL string) Option {
	return func(c *OpenRouterClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *OpenRouterClient) {
		c.httpClient = httpClient
	}
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for attribution.
func WithReferer(referer string) Option {
	return func(c *OpenRouterClient) {
		c.referer = referer
	}
}

func WithTitle(title string) Option {
	return func(c *OpenRouterClient) {
		c.title = title
	}
}

func NewOpenRouterClient(apiKey string, opts ...Option) *OpenRouterClient {
	c := &OpenRouterClient{
		baseURL: DefaultOpenRouterURL,
		apiKey:  apiKey,
		referer: "http://localhost:3000",
		title:   defaultTitle,
		// No client-wide timeout: streaming responses are bounded by the
		// caller's context instead.
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenRouterClient) Ready() error {
	if c.apiKey == "" {
		return domain.ErrNotConfigured
	}
	return nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

func buildRequest(req domain.GenerationRequest, streaming bool) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	messages = append(messages, chatMessage{Role: string(domain.SystemRole), Content: req.SystemPrompt})
	for _, m := range req.Messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Image != "" {
			messages = append(messages, chatMessage{
				Role: string(m.Role),
				Content: []contentPart{
					{Type: "image_url", ImageURL: &imageURL{URL: m.Image}},
					{Type: "text", Text: content},
				},
			})
			continue
		}
		messages = append(messages, chatMessage{Role: string(m.Role), Content: content})
	}
	return chatCompletionRequest{
		Model:       string(req.Model),
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      streaming,
	}
}

// doRequest posts body and returns the response for a 2xx status.
func (c *OpenRouterClient) doRequest(ctx context.Context, candidate domain.Candidate, body chatCompletionRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseError(candidate, resp)
	}
	return resp, nil
}

func parseError(candidate domain.Candidate, resp *http.Response) error {
	perr := &domain.ProviderError{
		Candidate:  candidate,
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return perr
	}
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			perr.Message = errResp.Error.Message
		}
		var code int
		if json.Unmarshal(errResp.Error.Code, &code) == nil {
			perr.Code = code
		}
	}
	return perr
}

func (c *OpenRouterClient) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	resp, err := c.doRequest(ctx, req.Model, buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", &domain.ProviderError{Candidate: req.Model, StatusCode: resp.StatusCode, Message: "no choices in response"}
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenRouterClient) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	resp, err := c.doRequest(ctx, req.Model, buildRequest(req, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := stream.DecodeDeltas(ctx, resp.Body, onDelta)
	var perr *domain.ProviderError
	if errors.As(err, &perr) && perr.Candidate == "" {
		perr.Candidate = req.Model
	}
	if err != nil {
		log.WithCtx(ctx).Debug("Upstream stream ended with error",
			zap.String("model", string(req.Model)),
			zap.Int("received", len(text)),
			zap.Error(err))
	}
	return text, err
}
