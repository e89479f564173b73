package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/infrastructure/ai"
)

type classification struct {
	Category string `json:"category"`
	Urgent   bool   `json:"urgent"`
}

func claudeServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k-test", r.Header.Get("x-api-key"))
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			require.NoError(t, json.Unmarshal(raw, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropic_SinAPIKey(t *testing.T) {
	_, err := ai.NewAnthropicService("", "claude").Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.CodePromptNotConfigured, domain.CodeOf(err))
}

func TestAnthropic_LimpiaBloqueMarkdownConSchema(t *testing.T) {
	var body map[string]any
	srv := claudeServer(t, "Voici :\n```json\n{\"category\":\"devis\",\"urgent\":true}\n```", &body)
	svc := ai.NewAnthropicService("k-test", "claude-default").WithEndpoint(srv.URL)

	out, err := svc.Complete(context.Background(), ports.CompletionRequest{
		System:   "Classe le message.",
		Messages: []ports.ChatMessage{{Role: ports.RoleUser, Content: "Bonjour"}},
		Schema:   classification{},
	})
	require.NoError(t, err)

	var c classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "devis", c.Category)
	assert.True(t, c.Urgent)

	assert.Equal(t, "claude-default", body["model"])
	assert.EqualValues(t, 1024, body["max_tokens"])
	assert.Contains(t, body["system"], `"category"`)
}

func TestAnthropic_TextoLibreSinSchema(t *testing.T) {
	srv := claudeServer(t, "  Bonjour Madame, merci pour votre message.  ", nil)
	svc := ai.NewAnthropicService("k-test", "claude").WithEndpoint(srv.URL)

	out, err := svc.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.ChatMessage{{Role: ports.RoleUser, Content: "?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour Madame, merci pour votre message.", out)
}

func TestAnthropic_ErrorHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := ai.NewAnthropicService("k", "claude").WithEndpoint(srv.URL).Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "slow down")
}

func TestOpenAI_SinAPIKey(t *testing.T) {
	_, err := ai.NewOpenAIService("", "gpt-4o-mini").Complete(context.Background(), ports.CompletionRequest{})
	assert.Equal(t, domain.CodePromptNotConfigured, domain.CodeOf(err))
}

// ── Throttle ──────────────────────────────────────────────────────────────────

type countingLLM struct{ calls atomic.Int32 }

func (c *countingLLM) Complete(context.Context, ports.CompletionRequest) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestThrottled_RafagaYLuegoRateLimited(t *testing.T) {
	inner := &countingLLM{}
	// 6/min: ráfaga de 1, un token cada 10 s.
	th := ai.NewThrottled(inner, 6, 20*time.Millisecond, zerolog.Nop())

	out, err := th.Complete(context.Background(), ports.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = th.Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.CodeRateLimited, domain.CodeOf(err))
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestThrottled_ContextoCancelado(t *testing.T) {
	th := ai.NewThrottled(&countingLLM{}, 6, time.Second, zerolog.Nop())
	_, _ = th.Complete(context.Background(), ports.CompletionRequest{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := th.Complete(ctx, ports.CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
