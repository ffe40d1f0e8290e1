package capture

import (
	"errors"
	"image"
	"image/color"
	"time"
)

// Synthetic is a frame source generating a moving test pattern.
// It stands in for a physical camera in development and tests.
type Synthetic struct {
	width  int
	height int

	opened bool
	tick   int
}

// NewSynthetic returns a synthetic source with the given frame size.
func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{
		width:  width,
		height: height,
	}
}

// Open acquires the source.
func (s *Synthetic) Open() error {
	if s.width <= 0 || s.height <= 0 {
		return errors.New("invalid frame size")
	}
	s.opened = true
	return nil
}

// Read generates the next test pattern frame.
func (s *Synthetic) Read() (*Frame, error) {
	if !s.opened {
		return nil, errors.New("source not open")
	}
	s.tick++

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := s.tick * 4
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift) * 255 / s.width),
				G: uint8((y + shift) * 255 / s.height),
				B: uint8(shift),
				A: 255,
			})
		}
	}

	return &Frame{
		Image:    img,
		Captured: time.Now(),
	}, nil
}

// Close releases the source.
func (s *Synthetic) Close() error {
	s.opened = false
	return nil
}
