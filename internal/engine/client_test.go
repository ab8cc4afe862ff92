package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSuccess(t *testing.T) {
	var gotBody generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"category":"BILLING"}`})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", 0.2, nil)
	out, err := c.Generate(context.Background(), "classify this", 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, `{"category":"BILLING"}`, out)
	assert.Equal(t, "test-model", gotBody.Model)
	assert.Equal(t, "classify this", gotBody.Prompt)
	assert.False(t, gotBody.Stream)
	assert.InDelta(t, 0.2, gotBody.Options.Temperature, 1e-9)
}

func TestGenerateRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model exploded"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", 0, nil)
	_, err := c.Generate(context.Background(), "p", 5*time.Second)

	genErr, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, KindRemote, genErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, genErr.Status)
	assert.Contains(t, genErr.BodyExcerpt, "model exploded")
}

func TestGenerateErrorExcerptIsBounded(t *testing.T) {
	big := make([]byte, 4096)
	for i := range big {
		big[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(big)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", 0, nil)
	_, err := c.Generate(context.Background(), "p", 5*time.Second)

	genErr, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.LessOrEqual(t, len(genErr.BodyExcerpt), excerptLimit)
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(server.URL, "test-model", 0, nil)
	start := time.Now()
	_, err := c.Generate(context.Background(), "p", 50*time.Millisecond)
	elapsed := time.Since(start)

	genErr, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, genErr.Kind)
	// The call must return promptly once the deadline passes.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestGenerateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	c := NewClient(server.URL, "test-model", 0, nil)
	_, err := c.Generate(context.Background(), "p", 5*time.Second)

	genErr, ok := AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, genErr.Kind)
}

func TestHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", 0, nil)
	assert.NoError(t, c.Healthy(context.Background()))
}

func TestHealthyDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-model", 0, nil)
	assert.Error(t, c.Healthy(context.Background()))
}
