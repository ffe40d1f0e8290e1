package capture

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticSource(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(64, 48)

	// Reading before open fails.
	_, err := src.Read()
	assert.Error(t, err)

	require.NoError(t, src.Open())
	defer src.Close() //nolint:errcheck

	f1, err := src.Read()
	require.NoError(t, err)
	f2, err := src.Read()
	require.NoError(t, err)

	bounds := f1.Image.Bounds()
	assert.Equal(t, 64, bounds.Dx())
	assert.Equal(t, 48, bounds.Dy())
	// The pattern moves between frames.
	assert.NotEqual(t, f1.Image.At(0, 0), f2.Image.At(0, 0))
}

func TestSyntheticInvalidSize(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(0, 48)
	assert.Error(t, src.Open())
}

func TestEncoderRoundTrip(t *testing.T) {
	t.Parallel()

	src := NewSynthetic(64, 48)
	require.NoError(t, src.Open())
	defer src.Close() //nolint:errcheck

	frame, err := src.Read()
	require.NoError(t, err)

	enc, err := NewEncoder(70)
	require.NoError(t, err)

	data, err := enc.Encode(frame)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestEncoderQualityRange(t *testing.T) {
	t.Parallel()

	_, err := NewEncoder(0)
	assert.Error(t, err)
	_, err = NewEncoder(101)
	assert.Error(t, err)
	_, err = NewEncoder(1)
	assert.NoError(t, err)
}
