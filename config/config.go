package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
)

const DefaultPath = "gateway.toml"

// placeholderKeys are sample values shipped in env templates; they count as
// unset.
var placeholderKeys = map[string]bool{
	"your-openrouter-api-key-here": true,
	"sk-or-v1-your-api-key-here":   true,
	"your-api-key-here":            true,
}

type Config struct {
	Server    Server    `toml:"server"`
	Providers Providers `toml:"providers"`
	Models    Models    `toml:"models"`
	Retry     Retry     `toml:"retry"`
	Search    Search    `toml:"search"`
	RateLimit RateLimit `toml:"rate_limit"`
}

type Server struct {
	Port         string   `toml:"port"`
	SiteURL      string   `toml:"site_url"`
	BodyLimit    string   `toml:"body_limit"`
	AllowOrigins []string `toml:"allow_origins"`
}

type Providers struct {
	OpenRouterKey string `toml:"openrouter_key"`
	OpenRouterURL string `toml:"openrouter_url"`
	GeminiKey     string `toml:"gemini_key"`
	AnthropicKey  string `toml:"anthropic_key"`
	Title         string `toml:"title"`
}

type Models struct {
	// Defaults is the ordered fallback list.
	Defaults []string `toml:"defaults"`
	// Auto maps a request category (code, vision, reasoning, general) to the
	// candidate tried first for model "auto".
	Auto map[string]string `toml:"auto"`
}

type Retry struct {
	MaxAttempts int           `toml:"max_attempts"`
	Backoff     time.Duration `toml:"backoff"`
	CallTimeout time.Duration `toml:"call_timeout"`
}

type Search struct {
	BraveKey       string        `toml:"brave_key"`
	BackendTimeout time.Duration `toml:"backend_timeout"`
	MaxResults     int           `toml:"max_results"`
}

type RateLimit struct {
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Burst             int    `toml:"burst"`
	Salt              string `toml:"salt"`
}

// DefaultModels is the built-in fallback order, free models first.
var DefaultModels = []string{
	"google/gemini-2.0-flash-exp:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
	"google/gemini-2.0-flash-thinking-exp:free",
	"deepseek/deepseek-chat",
}

func Default() *Config {
	auto := map[string]string{}
	for category, candidate := range usecase.DefaultCategoryTable() {
		auto[string(category)] = string(candidate)
	}
	return &Config{
		Server: Server{
			Port:         "8080",
			SiteURL:      "http://localhost:3000",
			BodyLimit:    "8M",
			AllowOrigins: []string{"*"},
		},
		Providers: Providers{Title: "AI Chat Assistant"},
		Models: Models{
			Defaults: append([]string(nil), DefaultModels...),
			Auto:     auto,
		},
		Retry: Retry{
			Backoff:     time.Second,
			CallTimeout: 60 * time.Second,
		},
		Search: Search{
			BackendTimeout: usecase.DefaultBackendTimeout,
			MaxResults:     usecase.DefaultMaxResults,
		},
		RateLimit: RateLimit{
			RequestsPerMinute: 20,
			Burst:             5,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path when it
// exists, and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides reads OPENROUTER_API_KEY, GEMINI_API_KEY,
// ANTHROPIC_API_KEY, BRAVE_API_KEY, PORT, SITE_URL and
// GATEWAY_MAX_ATTEMPTS.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Providers.OpenRouterKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Providers.GeminiKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Providers.AnthropicKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		c.Search.BraveKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		c.Server.SiteURL = v
	}
	if v := os.Getenv("GATEWAY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
}

func (c *Config) normalize() {
	c.Providers.OpenRouterKey = credential(c.Providers.OpenRouterKey)
	c.Providers.GeminiKey = credential(c.Providers.GeminiKey)
	c.Providers.AnthropicKey = credential(c.Providers.AnthropicKey)
	c.Search.BraveKey = credential(c.Search.BraveKey)
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
}

func credential(key string) string {
	key = strings.TrimSpace(key)
	if placeholderKeys[key] {
		return ""
	}
	return key
}

func (c *Config) Validate() error {
	if len(c.Models.Defaults) == 0 {
		return errors.New("models.defaults must not be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port %q is not a number", c.Server.Port)
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts must not be negative")
	}
	if c.Retry.Backoff < 0 || c.Retry.CallTimeout < 0 || c.Search.BackendTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	for category := range c.Models.Auto {
		switch usecase.Category(category) {
		case usecase.CategoryCode, usecase.CategoryVision, usecase.CategoryReasoning, usecase.CategoryGeneral:
		default:
			return fmt.Errorf("models.auto: unknown category %q", category)
		}
	}
	return nil
}

// Candidates returns the fallback list as domain candidates.
func (c *Config) Candidates() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(c.Models.Defaults))
	for _, m := range c.Models.Defaults {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, domain.Candidate(m))
		}
	}
	return out
}

// CategoryTable returns the auto dispatch table.
func (c *Config) CategoryTable() usecase.CategoryTable {
	table := usecase.CategoryTable{}
	for category, candidate := range c.Models.Auto {
		table[usecase.Category(category)] = domain.Candidate(candidate)
	}
	return table
}

// RetryPolicy converts the retry section for the orchestrator.
func (c *Config) RetryPolicy() usecase.RetryPolicy {
	return usecase.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     usecase.FixedBackoff(c.Retry.Backoff),
		CallTimeout: c.Retry.CallTimeout,
	}
}
