package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"exo-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, chatBody *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(chatBody))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"pong"},"done":true}` + "\n"))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral:latest","model":"mistral:latest"},{"name":"llama3:latest","model":"llama3:latest"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_BeforeInitialize(t *testing.T) {
	a := NewOllamaAdapter(DefaultConfig())

	_, err := a.Generate(context.Background(), "ping", entity.GenerationParams{})
	assert.ErrorIs(t, err, entity.ErrUninitialized)

	_, err = a.ListModels(context.Background())
	assert.ErrorIs(t, err, entity.ErrUninitialized)
}

func TestInitialize_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  entity.BackendConfig
	}{
		{"bad base url", entity.BackendConfig{BaseURL: "::not a url"}},
		{"bad num_ctx", entity.BackendConfig{Extra: map[string]string{"num_ctx": "lots"}}},
		{"negative repeat penalty", entity.BackendConfig{Extra: map[string]string{"repeat_penalty": "-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewOllamaAdapter(DefaultConfig())
			err := a.Initialize(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, entity.ErrConfiguration)
		})
	}
}

func TestGenerateAndList_AgainstServer(t *testing.T) {
	var chatBody map[string]any
	srv := newOllamaServer(t, &chatBody)

	backend, err := Factory(DefaultConfig())(entity.BackendConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background(), entity.BackendConfig{
		Extra: map[string]string{"num_ctx": "2048"},
	}))

	res, err := backend.Generate(context.Background(), "ping", entity.GenerationParams{Temperature: entity.Float32(0.2)})
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Text)
	assert.Equal(t, "llama3", res.Model)
	assert.Equal(t, "llama3", chatBody["model"])

	models, err := backend.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "mistral:latest"}, models)

	info := backend.ModelInfo()
	assert.Equal(t, 2048, info.Parameters["num_ctx"])
	assert.Equal(t, srv.URL, info.BaseURL)
}

func TestGenerate_ServerErrorIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama3\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	a := NewOllamaAdapter(DefaultConfig())
	require.NoError(t, a.Initialize(context.Background(), entity.BackendConfig{BaseURL: srv.URL}))

	_, err := a.Generate(context.Background(), "ping", entity.GenerationParams{})
	require.Error(t, err)
	assert.True(t, entity.IsBackendError(err))

	_, err = a.ListModels(context.Background())
	assert.True(t, entity.IsBackendError(err))
}

func TestGenerate_EmptyReplyIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer srv.Close()

	a := NewOllamaAdapter(DefaultConfig())
	require.NoError(t, a.Initialize(context.Background(), entity.BackendConfig{BaseURL: srv.URL}))

	res, err := a.Generate(context.Background(), "ping", entity.GenerationParams{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, entity.IsBackendError(err))
}
