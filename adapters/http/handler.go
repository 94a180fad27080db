package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const apiKeyMissing = "API_KEY_MISSING"

type ChatHandler struct {
	svc       *usecase.ChatService
	providers func() []string
	backends  []string
	clients   func() int
}

type ErrorResponse struct {
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Providers []string  `json:"providers"`
	Backends  []string  `json:"backends"`
	Clients   int       `json:"websocket_clients"`
}

type HandlerOption func(*ChatHandler)

// WithProviders reports the configured upstream providers on /health.
func WithProviders(fn func() []string) HandlerOption {
	return func(h *ChatHandler) {
		h.providers = fn
	}
}

func WithBackends(names []string) HandlerOption {
	return func(h *ChatHandler) {
		h.backends = names
	}
}

// WithClientCount reports connected websocket clients on /health.
func WithClientCount(fn func() int) HandlerOption {
	return func(h *ChatHandler) {
		h.clients = fn
	}
}

func NewChatHandler(svc *usecase.ChatService, opts ...HandlerOption) *ChatHandler {
	h := &ChatHandler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RequestContext copies echo's request id and the client address into the
// request context so every log line carries them.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := log.WithRequest(c.Request().Context(), requestID, c.RealIP())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Chat serves POST /chat as JSON or as an event stream.
func (h *ChatHandler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req usecase.ChatRequest
	if err := c.Bind(&req); err != nil {
		log.WithCtx(ctx).Debug("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: i18n.Text(language.Arabic, i18n.InvalidRequest)})
	}

	p, err := h.svc.Prepare(req)
	if err != nil {
		return h.fail(c, language.Arabic, err)
	}

	log.WithCtx(ctx).Info("📨 Chat request",
		zap.String("model", string(p.Model)),
		zap.Bool("deep_search", p.DeepSearch),
		zap.Bool("streaming", req.Streaming),
		zap.String("locale", p.Locale.String()))

	if req.Streaming {
		return h.stream(c, p)
	}

	resp, err := h.svc.Chat(ctx, p)
	if err != nil {
		return h.fail(c, p.Locale, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) stream(c echo.Context, p usecase.Prepared) error {
	ctx := c.Request().Context()

	if err := h.svc.Ready(p); err != nil {
		return h.fail(c, p.Locale, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	format := stream.FormatLegacy
	if p.DeepSearch {
		format = stream.FormatTyped
	}
	if err := h.svc.Stream(ctx, p, stream.NewEncoder(res, format)); err != nil {
		log.WithCtx(ctx).Warn("Chat stream ended with error", zap.Error(err))
	}
	return nil
}

// fail maps a domain error to its status code and localized body.
func (h *ChatHandler) fail(c echo.Context, locale language.Tag, err error) error {
	ctx := c.Request().Context()
	status, body := ErrorStatus(err, locale)
	if errors.Is(err, context.Canceled) {
		log.WithCtx(ctx).Info("Client went away", zap.Error(err))
		return nil
	}
	if status >= http.StatusInternalServerError {
		log.WithCtx(ctx).Error("❌ Chat request failed", zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, body)
}

// ErrorStatus returns the HTTP status and body for err.
func ErrorStatus(err error, locale language.Tag) (int, ErrorResponse) {
	var (
		validationErr *domain.ValidationError
		configErr     *domain.ConfigurationError
		exhaustedErr  *domain.ExhaustedError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{Message: validationErr.Message()}
	case errors.As(err, &configErr):
		return http.StatusInternalServerError, ErrorResponse{Message: configErr.Message(), Error: apiKeyMissing}
	case errors.As(err, &exhaustedErr):
		return http.StatusServiceUnavailable, ErrorResponse{Message: exhaustedErr.Message(), Retryable: exhaustedErr.Retryable()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Message: i18n.Text(locale, i18n.AllModelsBusy), Retryable: true}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: usecase.UserMessage(err, locale, false)}
	}
}

func (h *ChatHandler) HealthCheck(c echo.Context) error {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "chat-gateway",
		Providers: []string{},
		Backends:  h.backends,
	}
	if h.providers != nil {
		resp.Providers = h.providers()
	}
	if h.clients != nil {
		resp.Clients = h.clients()
	}
	if len(resp.Providers) == 0 {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}

// limiterStore adapts a domain.RateLimiter to echo's rate limiter store.
type limiterStore struct {
	limiter domain.RateLimiter
}

func (s limiterStore) Allow(identifier string) (bool, error) {
	return s.limiter.Allow(identifier), nil
}

// RateLimit rejects clients over their budget with a localized 429.
func RateLimit(limiter domain.RateLimiter) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: limiterStore{limiter: limiter},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Failed to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.WithCtx(c.Request().Context()).Info("Client rate limited", zap.String("client", identifier))
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: i18n.Text(language.Arabic, i18n.RateLimited), Retryable: true})
		},
	})
}

// Register mounts the chat routes on e.
func (h *ChatHandler) Register(e *echo.Echo, limiter domain.RateLimiter) {
	e.GET("/health", h.HealthCheck)
	e.POST("/chat", h.Chat, RateLimit(limiter))
}
