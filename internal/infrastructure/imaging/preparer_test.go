package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 2000, 2000, 2000, 1000},
		{1000, 3000, 2000, 666, 2000},
		{800, 600, 2000, 800, 600},
		{5000, 1, 2000, 2000, 1},
		{800, 600, 0, 800, 600},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestPreparer_Downscales(t *testing.T) {
	data := pngBytes(t, 400, 100)

	out, err := NewPreparer().Prepare(data, "image/png", 200)
	require.NoError(t, err)

	assert.True(t, out.Resized)
	assert.Equal(t, "image/png", out.MIME)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 50, out.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
}

func TestPreparer_KeepsSmallImage(t *testing.T) {
	data := pngBytes(t, 50, 40)

	out, err := NewPreparer().Prepare(data, "image/png", 200)
	require.NoError(t, err)

	assert.False(t, out.Resized)
	assert.Equal(t, data, out.Data)
}

func TestPreparer_RejectsGarbage(t *testing.T) {
	_, err := NewPreparer().Prepare([]byte("not an image"), "image/png", 200)
	assert.Error(t, err)

	_, err = NewPreparer().Prepare([]byte{1}, "image/bmp", 200)
	assert.Error(t, err)
}
