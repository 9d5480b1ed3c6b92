// Package llm talks to hosted language models that answer with JSON. Clients
// never return errors to callers: any failure is logged and reported as absent.
package llm

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultTimeout     = 5 * time.Second
	DefaultMaxTokens   = 1000

	// Temperature is fixed for every provider and is not configurable.
	Temperature = 0.7

	// SystemPrompt is sent with every request.
	SystemPrompt = "Respond only with valid JSON."
)

// Client generates a JSON document for a prompt. GenerateJSON returns false when
// the client is disabled or the call failed for any reason.
type Client interface {
	IsEnabled() bool
	GenerateJSON(ctx context.Context, prompt string) ([]byte, bool)
	Name() string
}

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int

	// RequestsPerSecond > 0 paces outbound calls. Waiting counts against Timeout.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) withDefaults(model string) Config {
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

func (c Config) pacer() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.Burst)
}

// Observer receives one notification per outbound model call.
type Observer interface {
	ObserveModelCall(provider string, kind ErrorKind, elapsed time.Duration)
}

// Decode runs prompt through c and unmarshals the document into T.
func Decode[T any](ctx context.Context, c Client, prompt string) (T, bool) {
	var out T

	raw, ok := c.GenerateJSON(ctx, prompt)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
