package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vshop/insights/internal/insights"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubClient struct {
	enabled bool
	raw     string
	calls   int
	mu      sync.Mutex
}

func (s *stubClient) Name() string    { return "stub" }
func (s *stubClient) IsEnabled() bool { return s.enabled }

func (s *stubClient) GenerateJSON(context.Context, string) ([]byte, bool) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.raw == "" {
		return nil, false
	}
	return []byte(s.raw), true
}

type stubRepo struct {
	mu      sync.Mutex
	records []models.InsightRequest
	err     error
}

func (r *stubRepo) Create(req *models.InsightRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *req)
	return r.err
}

func (r *stubRepo) GetRecent(int) ([]models.InsightRequest, error) { return nil, nil }

func (r *stubRepo) CountByOutcome(time.Time, time.Time) ([]models.OutcomeCount, error) {
	return nil, nil
}

func (r *stubRepo) snapshot() []models.InsightRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.InsightRequest(nil), r.records...)
}

const validInsights = `{"summary":"Great value.","pros":["battery","screen"],"cons":["camera"],"recommendedFor":["students"]}`

var phone = models.Product{
	Title: "Phone X",
	Price: 799,
	Attributes: []models.ProductAttribute{
		{ID: "BATTERY_CAPACITY", Name: "Battery", ValueName: "5000 mAh"},
		{ID: "RAM", Name: "RAM", ValueName: "8 GB"},
		{ID: "COLOR", Name: "Color", ValueName: "Black"},
	},
}

type insightsEnvelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    models.InsightsResponse `json:"data"`
}

func setupRouter(client *stubClient, repo models.InsightRequestRepository) *gin.Engine {
	logger, _ := test.NewNullLogger()
	svc := insights.NewService(client, logger)
	h := NewInsightsHandler(svc, nil, repo, logger)

	router := gin.New()
	router.POST("/api/v1/products/insights", h.HandleGenerate)
	router.POST("/api/v1/products/insights/prompt", h.HandlePrompt)
	return router
}

func post(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "handler-test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeInsights(t *testing.T, w *httptest.ResponseRecorder) insightsEnvelope {
	t.Helper()
	var env insightsEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandleGenerate_Success(t *testing.T) {
	client := &stubClient{enabled: true, raw: validInsights}
	repo := &stubRepo{}
	router := setupRouter(client, repo)

	w := post(t, router, "/api/v1/products/insights", phone)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeInsights(t, w)
	assert.True(t, env.Success)
	assert.True(t, env.Data.AIEnabled)
	require.NotNil(t, env.Data.Insights)
	assert.Equal(t, "Great value.", env.Data.Insights.Summary)
	assert.Equal(t, []string{"students"}, env.Data.Insights.RecommendedFor)

	require.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	record := repo.snapshot()[0]
	assert.Equal(t, models.OutcomeGenerated, record.Outcome)
	assert.Equal(t, utils.HashIdentifier("203.0.113.7"), record.ClientHash)
	assert.Equal(t, "Phone X", record.ProductTitle)
	assert.Equal(t, 2, record.AttributeCount)
	assert.Equal(t, "stub", record.Provider)
	assert.Equal(t, "handler-test", record.UserAgent)
}

func TestHandleGenerate_InsufficientAttributesSkipsModel(t *testing.T) {
	client := &stubClient{enabled: true, raw: validInsights}
	repo := &stubRepo{}
	router := setupRouter(client, repo)

	product := models.Product{
		Title:      "Cable",
		Price:      9.99,
		Attributes: []models.ProductAttribute{{Name: "Screen", ValueName: "none"}},
	}
	w := post(t, router, "/api/v1/products/insights", product)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeInsights(t, w)
	assert.Nil(t, env.Data.Insights)
	assert.True(t, env.Data.AIEnabled)
	assert.Zero(t, client.calls)

	require.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.OutcomeInsufficientAttributes, repo.snapshot()[0].Outcome)
}

func TestHandleGenerate_Disabled(t *testing.T) {
	client := &stubClient{enabled: false}
	repo := &stubRepo{}
	router := setupRouter(client, repo)

	w := post(t, router, "/api/v1/products/insights", phone)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeInsights(t, w)
	assert.Nil(t, env.Data.Insights)
	assert.False(t, env.Data.AIEnabled)
	assert.Zero(t, client.calls)

	require.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.OutcomeDisabled, repo.snapshot()[0].Outcome)
}

func TestHandleGenerate_UnavailableIsNotAnError(t *testing.T) {
	for name, raw := range map[string]string{
		"no response":      "",
		"invalid response": `{"summary":"x","pros":[],"cons":["y"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := &stubClient{enabled: true, raw: raw}
			repo := &stubRepo{}
			router := setupRouter(client, repo)

			w := post(t, router, "/api/v1/products/insights", phone)

			require.Equal(t, http.StatusOK, w.Code)
			env := decodeInsights(t, w)
			assert.True(t, env.Success)
			assert.Nil(t, env.Data.Insights)
			assert.Contains(t, w.Body.String(), `"insights":null`)
			assert.Equal(t, 1, client.calls)

			require.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
			assert.Equal(t, models.OutcomeUnavailable, repo.snapshot()[0].Outcome)
		})
	}
}

func TestHandleGenerate_TrackingFailureIgnored(t *testing.T) {
	client := &stubClient{enabled: true, raw: validInsights}
	router := setupRouter(client, &stubRepo{err: errors.New("db down")})

	w := post(t, router, "/api/v1/products/insights", phone)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleGenerate_NoRepository(t *testing.T) {
	client := &stubClient{enabled: true, raw: validInsights}
	router := setupRouter(client, nil)

	w := post(t, router, "/api/v1/products/insights", phone)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleGenerate_BadRequests(t *testing.T) {
	router := setupRouter(&stubClient{enabled: true, raw: validInsights}, nil)

	tests := []struct {
		name string
		body interface{}
		msg  string
	}{
		{name: "malformed json", body: `{"title":`, msg: "Invalid request format"},
		{name: "missing title", body: `{"price":10}`, msg: "Invalid request format"},
		{name: "blank title", body: models.Product{Title: "   "}, msg: "Title cannot be empty"},
		{name: "negative price", body: models.Product{Title: "t", Price: -1}, msg: "Price cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/api/v1/products/insights", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp utils.APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.msg, resp.Message)
		})
	}
}

func TestHandlePrompt(t *testing.T) {
	client := &stubClient{enabled: true, raw: validInsights}
	router := setupRouter(client, nil)

	w := post(t, router, "/api/v1/products/insights/prompt", phone)
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data models.PromptResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	assert.True(t, env.Data.Sufficient)
	assert.Equal(t, map[string]string{"battery": "5000 mAh", "ram": "8 GB"}, env.Data.Attributes)
	assert.Contains(t, env.Data.Prompt, "- Title: Phone X")
	assert.Contains(t, env.Data.Prompt, "  - Battery: 5000 mAh")
	assert.Zero(t, client.calls)
}
