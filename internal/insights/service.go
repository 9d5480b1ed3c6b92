package insights

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/llm"
	"github.com/vshop/insights/internal/metrics"
	"github.com/vshop/insights/internal/models"
)

// Outcome labels beyond those stored in the request log.
const (
	outcomeInvalid = "invalid_response"
	outcomePanic   = "panic"
)

// Service generates product insights. Generate never fails: every problem ends
// up as a log line and an absent result.
type Service struct {
	client  llm.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

type ServiceOption func(*Service)

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(client llm.Client, logger *logrus.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{client: client, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether Generate can ever produce a result.
func (s *Service) Enabled() bool {
	return s.client != nil && s.client.IsEnabled()
}

// Provider names the backing model client, or "none".
func (s *Service) Provider() string {
	if s.client == nil {
		return "none"
	}
	return s.client.Name()
}

// Generate returns insights for input, or false when the model is disabled,
// unreachable, slow, or answers with something that fails validation.
func (s *Service) Generate(ctx context.Context, input models.InsightsInput) (out models.ProductInsights, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"title": input.Title,
				"panic": fmt.Sprint(r),
			}).Error("Insights generation panicked")
			s.metrics.ObserveOutcome(outcomePanic)
			out, ok = models.ProductInsights{}, false
		}
	}()

	if !s.Enabled() {
		s.metrics.ObserveOutcome(models.OutcomeDisabled)
		return models.ProductInsights{}, false
	}

	done := s.metrics.Track()
	defer done()

	prompt := BuildPrompt(input)

	// The document stays untyped until it passes validation.
	doc, ok := llm.Decode[interface{}](ctx, s.client, prompt)
	if !ok {
		s.metrics.ObserveOutcome(models.OutcomeUnavailable)
		return models.ProductInsights{}, false
	}

	insights, reasons := trustDocument(doc)
	if len(reasons) > 0 {
		s.logger.WithFields(logrus.Fields{
			"provider": s.client.Name(),
			"reasons":  reasons,
		}).Warn("Invalid response structure")
		s.metrics.ObserveOutcome(outcomeInvalid)
		return models.ProductInsights{}, false
	}

	s.metrics.ObserveOutcome(models.OutcomeGenerated)
	s.logger.WithFields(logrus.Fields{
		"provider": s.client.Name(),
		"pros":     len(insights.Pros),
		"cons":     len(insights.Cons),
	}).Debug("Insights generated")
	return insights, true
}
