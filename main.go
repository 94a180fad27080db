package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/hasher"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/http"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/prompt"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/ratelimit"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/sanitizer"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/search"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/websocket"
	"github.com/satriahrh/cocoa-fruit/gateway/config"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

func main() {
	_ = gotenv.Load()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("GATEWAY_CONFIG")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.With().Fatal("Failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}

	router := llm.NewRouter(llm.NewOpenRouterClient(cfg.Providers.OpenRouterKey,
		llm.WithBaseURL(orDefault(cfg.Providers.OpenRouterURL, llm.DefaultOpenRouterURL)),
		llm.WithReferer(cfg.Server.SiteURL),
		llm.WithTitle(cfg.Providers.Title),
	))
	if cfg.Providers.GeminiKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Providers.GeminiKey)
		if err != nil {
			log.With().Warn("Gemini provider disabled", zap.Error(err))
		} else {
			router.Register(llm.GeminiPrefix, gemini)
		}
	}
	if cfg.Providers.AnthropicKey != "" {
		router.Register(llm.AnthropicPrefix, llm.NewAnthropicClient(cfg.Providers.AnthropicKey))
	}
	if router.Ready() != nil {
		log.With().Warn("⚠️ OPENROUTER_API_KEY is not set, chat requests will fail with API_KEY_MISSING")
	}

	orchestrator := usecase.NewOrchestrator(router, cfg.Candidates(),
		usecase.WithRetryPolicy(cfg.RetryPolicy()),
		usecase.WithAutoSelector(usecase.AutoSelector{
			Classifier: usecase.NewKeywordClassifier(),
			Table:      cfg.CategoryTable(),
		}),
		usecase.WithRateLimitHook(func(ctx context.Context, candidate domain.Candidate) {
			log.WithCtx(ctx).Warn("⏳ Upstream rate limit", zap.String("model", string(candidate)))
		}),
	)
	aggregator := usecase.NewAggregator([]domain.SearchBackend{
		search.NewDuckDuckGo(),
		search.NewWikipedia(),
		search.NewBrave(cfg.Search.BraveKey),
	},
		usecase.WithBackendTimeout(cfg.Search.BackendTimeout),
		usecase.WithMaxResults(cfg.Search.MaxResults),
	)
	svc := usecase.NewChatService(orchestrator, usecase.NewDeepSearch(aggregator, orchestrator), sanitizer.New(), prompt.NewBuilder())

	limiter := ratelimit.NewMemory(hasher.New([]byte(cfg.RateLimit.Salt)),
		ratelimit.WithRate(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	go limiter.Run(ctx, 5*time.Minute)

	wsServer := websocket.NewServer(svc, limiter)
	go wsServer.RunWebsocketHub(ctx)

	chatHandler := http.NewChatHandler(svc,
		http.WithProviders(router.Providers),
		http.WithBackends(aggregator.Backends()),
		http.WithClientCount(wsServer.GetHub().ClientCount),
	)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"Content-Length",
		},
		MaxAge: 86400,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	e.Use(http.RequestContext)

	chatHandler.Register(e, limiter)
	e.GET("/ws", wsServer.Handler)

	addr := ":" + cfg.Server.Port
	go func() {
		logger := log.With(zap.String("addr", addr))
		logger.Info("Starting server")
		logger.Info("Available endpoints: GET /health, POST /chat, GET /ws")
		if err := e.Start(addr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.With().Error("Graceful shutdown failed", zap.Error(err))
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
