package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"email-agent-backend/pkg/metrics"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "ok", nil
}

func newOllamaServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		json.NewEncoder(w).Encode(map[string]any{"model": "llama3", "response": reply, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaService_GenerateContent(t *testing.T) {
	var seen map[string]any
	srv := newOllamaServer(t, `{"summary":"hi"}`, &seen)

	svc := NewOllamaService(srv.URL, "mistral")
	out, err := svc.GenerateContent(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"hi"}`, out)
	assert.Equal(t, "mistral", seen["model"])
	assert.Equal(t, "classify this", seen["prompt"])
	assert.Equal(t, false, seen["stream"])
}

func TestOllamaService_UsesGettersPerCall(t *testing.T) {
	first := newOllamaServer(t, "first", nil)
	second := newOllamaServer(t, "second", nil)

	baseURL := first.URL
	svc := NewOllamaServiceWithGetters(func() string { return baseURL }, func() string { return "" })

	out, err := svc.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	baseURL = second.URL
	out, err = svc.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestOllamaService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, "").GenerateContent(context.Background(), "p")
	require.Error(t, err)
}

func TestOllamaService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaService(url, "").GenerateContent(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, isConnectionError(err))
}

func TestFallbackService(t *testing.T) {
	ctx := context.Background()

	t.Run("primary succeeds", func(t *testing.T) {
		g := &fakeGenerator{replies: []string{"gemini"}}
		o := &fakeGenerator{}
		out, err := NewFallbackService(g, o).GenerateContent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "gemini", out)
		assert.Equal(t, 0, o.calls)
	})

	t.Run("falls back on primary error", func(t *testing.T) {
		g := &fakeGenerator{errs: []error{errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")}}
		o := &fakeGenerator{replies: []string{"ollama"}}
		out, err := NewFallbackService(g, o).GenerateContent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "ollama", out)
	})

	t.Run("retries primary when secondary unreachable after quota error", func(t *testing.T) {
		g := &fakeGenerator{errs: []error{errors.New("quota exceeded"), nil}, replies: []string{"", "gemini again"}}
		o := &fakeGenerator{errs: []error{errors.New("dial tcp 127.0.0.1:11434: connection refused")}}
		out, err := NewFallbackService(g, o).GenerateContent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "gemini again", out)
		assert.Equal(t, 2, g.calls)
	})

	t.Run("both fail", func(t *testing.T) {
		g := &fakeGenerator{errs: []error{errors.New("bad request")}}
		o := &fakeGenerator{errs: []error{errors.New("model missing")}}
		_, err := NewFallbackService(g, o).GenerateContent(ctx, "p")
		assert.Error(t, err)
	})

	t.Run("no providers", func(t *testing.T) {
		_, err := NewFallbackService(nil, nil).GenerateContent(ctx, "p")
		assert.ErrorIs(t, err, ErrNoProvider)
	})
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("429 Too Many Requests")))
	assert.False(t, isQuotaError(errors.New("invalid argument")))
	assert.False(t, isQuotaError(nil))
	assert.True(t, isConnectionError(errors.New("read: connection reset by peer")))
	assert.False(t, isConnectionError(errors.New("invalid argument")))
}

func TestBreakerService_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("boom")
	next := &fakeGenerator{errs: []error{boom, boom, boom}}
	b := NewBreakerService(next, BreakerSettings{Name: "test", ConsecutiveFailures: 3})

	for i := 0; i < 3; i++ {
		_, err := b.GenerateContent(context.Background(), "p")
		assert.ErrorIs(t, err, boom)
	}

	_, err := b.GenerateContent(context.Background(), "p")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "open breaker must not reach the generator")

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `email_agent_ai_breaker_state{breaker="test"} 2`)
}

func TestBreakerService_PassesThrough(t *testing.T) {
	b := NewBreakerService(&fakeGenerator{replies: []string{"fine"}}, BreakerSettings{})
	out, err := b.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestNewTextGenerator(t *testing.T) {
	static := func(v string) func() string { return func() string { return v } }
	cfg := func(p ProviderType) DynamicConfig {
		return DynamicConfig{Provider: p, GetOllamaBaseURL: static("http://localhost:11434"), GetOllamaModel: static("llama3")}
	}

	_, err := NewTextGeneratorWithDynamicConfig(context.Background(), cfg(ProviderGemini))
	assert.Error(t, err, "gemini without key")

	gen, err := NewTextGeneratorWithDynamicConfig(context.Background(), cfg(ProviderOllama))
	require.NoError(t, err)
	b, ok := gen.(*BreakerService)
	require.True(t, ok)
	_, ok = b.next.(*OllamaService)
	assert.True(t, ok)

	gen, err = NewTextGeneratorWithDynamicConfig(context.Background(), cfg(ProviderAuto))
	require.NoError(t, err)
	_, ok = gen.(*BreakerService).next.(*OllamaService)
	assert.True(t, ok, "auto without a Gemini key uses Ollama")
}
