package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFitImage_DownscalesLongSide(t *testing.T) {
	data := encodeTestPNG(t, 400, 200)

	out, mime, err := FitImage(data, 100, FormatPNG, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestFitImage_SmallImageKeepsSize(t *testing.T) {
	data := encodeTestPNG(t, 40, 30)

	out, _, err := FitImage(data, 2048, "", 0)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestFitImage_ConvertsToJPEG(t *testing.T) {
	out, mime, err := FitImage(encodeTestPNG(t, 10, 10), 0, FormatJPEG, 90)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	_, err = jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestFitImage_Errors(t *testing.T) {
	_, _, err := FitImage(nil, 100, FormatPNG, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = FitImage([]byte("not an image"), 100, FormatPNG, 0)
	assert.Error(t, err)

	_, _, err = FitImage(encodeTestPNG(t, 4, 4), 100, "bmp", 0)
	assert.ErrorContains(t, err, "unsupported")
}

func TestDataURI(t *testing.T) {
	uri := DataURI("image/png", []byte("abc"))
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	assert.Equal(t, "data:image/png;base64,YWJj", uri)
}
