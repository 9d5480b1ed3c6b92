package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	kinds []ErrorKind
}

func (r *recordingObserver) ObserveModelCall(_ string, kind ErrorKind, _ time.Duration) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func (r *recordingObserver) Kinds() []ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ErrorKind(nil), r.kinds...)
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			ID:      "chatcmpl-1",
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
		})
	}))
}

func TestOpenAIClient_DisabledWithoutKey(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{BaseURL: server.URL}, logger)

	assert.False(t, client.IsEnabled())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "OPENAI_API_KEY not configured - AI disabled", hook.LastEntry().Message)

	raw, ok := client.GenerateJSON(context.Background(), "prompt")
	assert.False(t, ok)
	assert.Nil(t, raw)
	assert.Zero(t, atomic.LoadInt64(&hits))
	assert.Len(t, hook.Entries, 1)
}

func TestOpenAIClient_Defaults(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: "http://example.test/v1/"}, logger)

	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultTimeout, client.cfg.Timeout)
	assert.Equal(t, DefaultMaxTokens, client.cfg.MaxTokens)
	assert.Equal(t, "http://example.test/v1", client.cfg.BaseURL)
	assert.Nil(t, client.pacer)
	assert.Equal(t, "openai", client.Name())
}

func TestOpenAIClient_GenerateJSON(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: `{"summary":"ok"}`}}},
		})
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	obs := &recordingObserver{}
	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"}, logger, WithObserver(obs))

	raw, ok := client.GenerateJSON(context.Background(), "describe this")
	require.True(t, ok)
	assert.JSONEq(t, `{"summary":"ok"}`, string(raw))

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: SystemPrompt}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "describe this"}, got.Messages[1])
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)

	assert.Equal(t, []ErrorKind{KindOK}, obs.Kinds())
}

func TestOpenAIClient_StripsCodeFences(t *testing.T) {
	server := chatServer(t, "```json\n{\"summary\":\"fenced\"}\n```")
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL}, logger)

	raw, ok := client.GenerateJSON(context.Background(), "p")
	require.True(t, ok)
	assert.JSONEq(t, `{"summary":"fenced"}`, string(raw))
}

func TestOpenAIClient_UnusableResponses(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty content", content: ""},
		{name: "whitespace", content: "   "},
		{name: "not json", content: "Here are your insights: great phone"},
		{name: "truncated json", content: `{"summary": "cut`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.content)
			defer server.Close()

			logger, hook := test.NewNullLogger()
			obs := &recordingObserver{}
			client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL}, logger, WithObserver(obs))

			raw, ok := client.GenerateJSON(context.Background(), "p")
			assert.False(t, ok)
			assert.Nil(t, raw)
			assert.Equal(t, []ErrorKind{KindInvalid}, obs.Kinds())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		})
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL}, logger)

	_, ok := client.GenerateJSON(context.Background(), "p")
	assert.False(t, ok)
}

func TestOpenAIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	logger, hook := test.NewNullLogger()
	obs := &recordingObserver{}
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL}, logger, WithObserver(obs))

	_, ok := client.GenerateJSON(context.Background(), "p")
	assert.False(t, ok)

	assert.Equal(t, []ErrorKind{KindAPI}, obs.Kinds())
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, http.StatusTooManyRequests, entry.Data["status_code"])
}

func TestOpenAIClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	logger, hook := test.NewNullLogger()
	obs := &recordingObserver{}
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond}, logger, WithObserver(obs))

	start := time.Now()
	raw, ok := client.GenerateJSON(context.Background(), "p")

	assert.False(t, ok)
	assert.Nil(t, raw)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []ErrorKind{KindTimeout}, obs.Kinds())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.EqualValues(t, 50, hook.LastEntry().Data["timeout_ms"])
}

func TestOpenAIClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	logger, _ := test.NewNullLogger()
	obs := &recordingObserver{}
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: url}, logger, WithObserver(obs))

	_, ok := client.GenerateJSON(context.Background(), "p")
	assert.False(t, ok)
	assert.Equal(t, []ErrorKind{KindOther}, obs.Kinds())
}

func TestOpenAIClient_PacerBoundedByTimeout(t *testing.T) {
	server := chatServer(t, `{"summary":"ok"}`)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	obs := &recordingObserver{}
	client := NewOpenAIClient(Config{
		APIKey:            "k",
		BaseURL:           server.URL,
		Timeout:           50 * time.Millisecond,
		RequestsPerSecond: 0.1,
		Burst:             1,
	}, logger, WithObserver(obs))

	_, ok := client.GenerateJSON(context.Background(), "p")
	assert.True(t, ok)

	// the next slot is ten seconds away, far beyond the timeout
	_, ok = client.GenerateJSON(context.Background(), "p")
	assert.False(t, ok)
	assert.Equal(t, []ErrorKind{KindOK, KindTimeout}, obs.Kinds())
}

func TestDecode(t *testing.T) {
	server := chatServer(t, `{"summary":"s","pros":["a"]}`)
	defer server.Close()

	logger, _ := test.NewNullLogger()
	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL}, logger)

	type doc struct {
		Summary string   `json:"summary"`
		Pros    []string `json:"pros"`
	}

	out, ok := Decode[doc](context.Background(), client, "p")
	require.True(t, ok)
	assert.Equal(t, doc{Summary: "s", Pros: []string{"a"}}, out)

	_, ok = Decode[[]int](context.Background(), client, "p")
	assert.False(t, ok)
}
