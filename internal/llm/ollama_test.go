package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/salesiq/salesiq-agent/internal/config"
	"github.com/salesiq/salesiq-agent/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *llm.OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return llm.NewOllamaClient(config.OllamaConfig{BaseURL: srv.URL, Model: "llama3"}, 5*time.Second)
}

func TestOllamaComplete_Success(t *testing.T) {
	client := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]any{"response": "the analysis", "done": true})
	})

	got, err := client.Complete(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "the analysis", got)
}

func TestOllamaComplete_ServerError(t *testing.T) {
	client := newOllamaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestOllamaComplete_EmptyCompletion(t *testing.T) {
	client := newOllamaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "", "done": true})
	})

	_, err := client.Complete(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrInvalidResponse)
}

func TestOllamaComplete_MalformedBody(t *testing.T) {
	client := newOllamaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Complete(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrInvalidResponse)
}

func TestOllamaComplete_ContextDeadline(t *testing.T) {
	client := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "p")
	require.ErrorIs(t, err, llm.ErrTimeout)
}

func TestOllamaComplete_ConnectionRefused(t *testing.T) {
	client := llm.NewOllamaClient(config.OllamaConfig{
		BaseURL: "http://127.0.0.1:1", Model: "llama3",
	}, time.Second)

	_, err := client.Complete(context.Background(), "p")
	require.ErrorIs(t, err, llm.ErrUnavailable)
}
