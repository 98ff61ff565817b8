package ocr

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

func TestSignals(t *testing.T) {
	words := []Word{
		{Text: "Invoice", Confidence: 90, Width: 100, Height: 20},
		{Text: "Total", Confidence: 70, Width: 50, Height: 20},
		{Text: "", Confidence: 99, Width: 10, Height: 10},
		{Text: "noise", Confidence: -1, Width: 500, Height: 500},
	}

	s := Signals(words, 200, 100)

	assert.InDelta(t, 80, s.Confidence, 1e-9)
	assert.InDelta(t, 3000.0/20000.0, s.Coverage, 1e-9)
	assert.InDelta(t, 1.0, s.Density, 1e-9)
}

func TestSignals_LargeSparseImage(t *testing.T) {
	words := []Word{{Text: "x", Confidence: 40, Width: 10, Height: 10}}

	s := Signals(words, 1000, 1000)

	assert.InDelta(t, 40, s.Confidence, 1e-9)
	assert.InDelta(t, 0.0001, s.Coverage, 1e-9)
	assert.InDelta(t, 0.01, s.Density, 1e-9)
}

func TestSignals_EmptyInputs(t *testing.T) {
	assert.Zero(t, Signals(nil, 100, 100))
	assert.Zero(t, Signals([]Word{{Text: "a", Confidence: 50}}, 0, 100))
}

func TestClient_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recognizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image/png", req.MIME)
		assert.Equal(t, "eng", req.Language)
		_ = json.NewEncoder(w).Encode(recognizeResponse{
			Width:  100,
			Height: 100,
			Words: []Word{
				{Text: "hello", Confidence: 95, Width: 40, Height: 10},
				{Text: "world", Confidence: 85, Width: 40, Height: 10},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(&config.OCRConfig{Endpoint: srv.URL, Language: "eng"})
	require.NoError(t, err)

	res, err := c.Recognize(context.Background(), []byte{0x89}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.InDelta(t, 90, res.Signals.Confidence, 1e-9)
}
