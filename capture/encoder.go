package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
)

// Encoder compresses raw frames to JPEG and transforms them to the
// text form embedded in wire messages.
type Encoder struct {
	quality int
}

// NewEncoder returns an encoder with the given JPEG quality (1-100).
func NewEncoder(quality int) (*Encoder, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality %d out of range 1-100", quality)
	}
	return &Encoder{quality: quality}, nil
}

// Encode compresses the frame and returns its base64 text form.
func (e *Encoder) Encode(frame *Frame) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: e.quality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
