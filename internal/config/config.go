package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vshop/insights/internal/llm"
	"github.com/vshop/insights/internal/ratelimit"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Database struct {
		URL string
	}
	Redis struct {
		URL string
	}
	LLM struct {
		Provider          string
		APIKey            string
		Model             string
		BaseURL           string
		Timeout           time.Duration
		RequestsPerSecond float64
		Burst             int
		GeminiAPIKey      string
		GeminiModel       string
	}
	RateLimit struct {
		MaxRequests   int
		Window        time.Duration
		SweepInterval time.Duration
	}
	Insights struct {
		PatternsFile string
	}
}

// env names for each key; the rest are only settable through config.yaml.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.log_level":        "LOG_LEVEL",
	"database.url":            "DATABASE_URL",
	"redis.url":               "REDIS_URL",
	"llm.provider":            "LLM_PROVIDER",
	"llm.api_key":             "OPENAI_API_KEY",
	"llm.model":               "OPENAI_MODEL",
	"llm.base_url":            "OPENAI_BASE_URL",
	"llm.timeout_ms":          "OPENAI_TIMEOUT",
	"llm.requests_per_second": "LLM_REQUESTS_PER_SECOND",
	"llm.burst":               "LLM_BURST",
	"llm.gemini_api_key":      "GEMINI_API_KEY",
	"llm.gemini_model":        "GEMINI_MODEL",
	"ratelimit.max_requests":  "RATE_LIMIT_MAX_REQUESTS",
	"ratelimit.window_ms":     "RATE_LIMIT_WINDOW_MS",
	"ratelimit.sweep_ms":      "RATE_LIMIT_SWEEP_MS",
	"insights.patterns_file":  "ATTRIBUTE_PATTERNS_FILE",
}

// Load reads config.yaml from the given directories (the working directory when
// none are given) and overlays environment variables. A missing file is fine.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.timeout_ms", int(llm.DefaultTimeout/time.Millisecond))
	v.SetDefault("llm.gemini_model", llm.DefaultGeminiModel)
	v.SetDefault("ratelimit.max_requests", ratelimit.DefaultMaxRequests)
	v.SetDefault("ratelimit.window_ms", int(ratelimit.DefaultWindow/time.Millisecond))
	v.SetDefault("ratelimit.sweep_ms", int(ratelimit.DefaultSweepInterval/time.Millisecond))

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	config.Server.Port = v.GetString("server.port")
	config.Server.LogLevel = strings.ToLower(v.GetString("server.log_level"))
	config.Database.URL = v.GetString("database.url")
	config.Redis.URL = v.GetString("redis.url")

	config.LLM.Provider = strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))
	config.LLM.APIKey = v.GetString("llm.api_key")
	config.LLM.Model = v.GetString("llm.model")
	config.LLM.BaseURL = v.GetString("llm.base_url")
	config.LLM.Timeout = millis(v.GetInt("llm.timeout_ms"), llm.DefaultTimeout)
	config.LLM.RequestsPerSecond = v.GetFloat64("llm.requests_per_second")
	config.LLM.Burst = v.GetInt("llm.burst")
	config.LLM.GeminiAPIKey = v.GetString("llm.gemini_api_key")
	config.LLM.GeminiModel = v.GetString("llm.gemini_model")

	config.RateLimit.MaxRequests = v.GetInt("ratelimit.max_requests")
	config.RateLimit.Window = millis(v.GetInt("ratelimit.window_ms"), ratelimit.DefaultWindow)
	config.RateLimit.SweepInterval = millis(v.GetInt("ratelimit.sweep_ms"), ratelimit.DefaultSweepInterval)

	config.Insights.PatternsFile = v.GetString("insights.patterns_file")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// millis converts a millisecond setting, falling back when it is not positive.
func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

// ModelConfig returns the client settings for the selected provider.
func (c *Config) ModelConfig() llm.Config {
	cfg := llm.Config{
		APIKey:            c.LLM.APIKey,
		Model:             c.LLM.Model,
		BaseURL:           c.LLM.BaseURL,
		Timeout:           c.LLM.Timeout,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Burst:             c.LLM.Burst,
	}
	if c.LLM.Provider == ProviderGemini {
		cfg.APIKey = c.LLM.GeminiAPIKey
		cfg.Model = c.LLM.GeminiModel
	}
	return cfg
}

func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:   c.RateLimit.MaxRequests,
		Window:        c.RateLimit.Window,
		SweepInterval: c.RateLimit.SweepInterval,
	}
}
