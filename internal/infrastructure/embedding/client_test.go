package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/config"
)

func TestHTTPEmbedder_EmbedStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := embedResponse{}
		for range req.Texts {
			out.Embeddings = append(out.Embeddings, []float64{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(&config.EmbeddingConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})
	require.NoError(t, err)

	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestHTTPEmbedder_RejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(&config.EmbeddingConfig{Endpoint: srv.URL, Dimension: 3})
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension")
}

func TestHTTPEmbedder_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(&config.EmbeddingConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status=503")
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: "grpc"})
	assert.Error(t, err)
}
