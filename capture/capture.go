// Package capture abstracts the local frame source and the encoding
// of raw frames for transmission.
package capture

import (
	"image"
	"time"
)

// Frame is one raw captured frame.
type Frame struct {
	Image    image.Image
	Captured time.Time
}

// Source is a local frame source, e.g. a camera device.
// A source must be opened before reading and closed exactly once
// per successful open; Close is safe to call when never opened.
type Source interface {
	// Open acquires the device.
	Open() error

	// Read captures one frame. An occasional failure is expected
	// and non-fatal.
	Read() (*Frame, error)

	// Close releases the device.
	Close() error
}
