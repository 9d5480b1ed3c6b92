package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API. It honours the same contract as
// OpenAIClient and is chosen by configuration, not as a fallback.
type GeminiClient struct {
	client   *genai.Client
	cfg      Config
	pacer    *rate.Limiter
	observer Observer
	logger   *logrus.Logger
}

// NewGeminiClient returns a disabled client when cfg.APIKey is empty. BaseURL,
// when set, overrides the API endpoint.
func NewGeminiClient(ctx context.Context, cfg Config, logger *logrus.Logger, opts ...Option) (*GeminiClient, error) {
	if logger == nil {
		logger = logrus.New()
	}
	o := buildOptions(opts)
	cfg = cfg.withDefaults(DefaultGeminiModel)

	g := &GeminiClient{
		cfg:      cfg,
		pacer:    cfg.pacer(),
		observer: o.observer,
		logger:   logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not configured - AI disabled")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  o.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) IsEnabled() bool { return g.client != nil }

func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string) ([]byte, bool) {
	if g.client == nil {
		return nil, false
	}

	start := time.Now()
	raw, err := g.generate(ctx, prompt)
	elapsed := time.Since(start)

	if g.observer != nil {
		g.observer.ObserveModelCall(g.Name(), Classify(err), elapsed)
	}
	if err != nil {
		logFailure(g.logger, g.Name(), g.cfg.Timeout, err)
		return nil, false
	}
	return raw, true
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := waitForSlot(ctx, g.pacer); err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(Temperature)),
		MaxOutputTokens:   int32(g.cfg.MaxTokens),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		if apiErr, ok := fromGenAIError(err); ok {
			return nil, apiErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}

	return cleanJSON(resp.Text())
}

func fromGenAIError(err error) (*APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Body: apiErr.Message}, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}, true
	}
	return nil, false
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
