package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	cfg        Config
	enabled    bool
	httpClient *http.Client
	pacer      *rate.Limiter
	observer   Observer
	logger     *logrus.Logger
}

// NewOpenAIClient never fails. Without an API key the client is disabled and
// makes no network calls.
func NewOpenAIClient(cfg Config, logger *logrus.Logger, opts ...Option) *OpenAIClient {
	if logger == nil {
		logger = logrus.New()
	}
	o := buildOptions(opts)

	cfg = cfg.withDefaults(DefaultModel)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &OpenAIClient{
		cfg:        cfg,
		enabled:    cfg.APIKey != "",
		httpClient: o.httpClient,
		pacer:      cfg.pacer(),
		observer:   o.observer,
		logger:     logger,
	}

	if !c.enabled {
		logger.Warn("OPENAI_API_KEY not configured - AI disabled")
	}
	return c
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) IsEnabled() bool { return c.enabled }

func (c *OpenAIClient) Model() string { return c.cfg.Model }

func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	start := time.Now()
	raw, err := c.complete(ctx, prompt)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveModelCall(c.Name(), Classify(err), elapsed)
	}
	if err != nil {
		logFailure(c.logger, c.Name(), c.cfg.Timeout, err)
		return nil, false
	}

	c.logger.WithFields(logrus.Fields{
		"provider":   c.Name(),
		"model":      c.cfg.Model,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Debug("Model response received")
	return raw, true
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := waitForSlot(ctx, c.pacer); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
		Temperature:    Temperature,
		MaxTokens:      c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return cleanJSON(chat.Choices[0].Message.Content)
}

func waitForSlot(ctx context.Context, pacer *rate.Limiter) error {
	if pacer == nil {
		return nil
	}
	if err := pacer.Wait(ctx); err != nil {
		// Wait refuses early when the deadline cannot be met.
		return fmt.Errorf("waiting for request slot: %w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// cleanJSON strips markdown fences some models add despite json mode and checks
// that what remains parses.
func cleanJSON(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if content == "" {
		return nil, ErrEmptyResponse
	}
	if !json.Valid([]byte(content)) {
		return nil, ErrInvalidJSON
	}
	return []byte(content), nil
}

func logFailure(logger *logrus.Logger, provider string, timeout time.Duration, err error) {
	entry := logger.WithFields(logrus.Fields{
		"provider": provider,
		"kind":     string(Classify(err)),
	})

	switch Classify(err) {
	case KindAPI:
		status := 0
		if apiErr, ok := asAPIError(err); ok {
			status = apiErr.StatusCode
		}
		entry.WithField("status_code", status).Error("Model API error")
	case KindTimeout:
		entry.WithField("timeout_ms", timeout.Milliseconds()).Warn("Model request timed out")
	case KindInvalid:
		entry.WithError(err).Warn("Model returned an unusable response")
	default:
		entry.WithError(err).Error("Model request failed")
	}
}
