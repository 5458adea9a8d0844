package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/llm"
)

func TestCompleteSendsJSONModeRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  {\"patient\":{}}  "}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Model: "test-model", Temperature: 0.1}, nil)
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"patient":{}}`, out)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.InDelta(t, 0.1, got.Options["temperature"], 0.0001)
}

func TestCompleteModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "missing"}, nil)
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
	assert.Contains(t, err.Error(), "ollama pull missing")
}

func TestCompleteBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, nil)
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
	assert.ErrorIs(t, err, llm.ErrBackendUnreachable)
	assert.False(t, errors.Is(err, llm.ErrModelNotFound))
	assert.Equal(t, "INFERENCE_UNAVAILABLE", common.Kind(err))
}

func TestCompleteSlowBackendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
	assert.ErrorIs(t, err, llm.ErrInferenceTimeout)
	assert.False(t, errors.Is(err, llm.ErrBackendUnreachable))
	assert.Contains(t, err.Error(), "did not answer within 50ms")
}

func TestCompleteCallerDeadlinePassesThrough(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Complete(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, common.Kind(err))
}

func TestCompleteBrokenEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Complete(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrMalformedModelOutput)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.Equal(t, "http://localhost:11434", c.cfg.BaseURL)
	assert.Equal(t, common.DefaultInferenceModel, c.Model())
	assert.Equal(t, c.cfg.Timeout, c.http.Timeout)
}
