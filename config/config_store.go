package config

import (
	"github.com/mitchellh/copystructure"
)

// Store holds all configuration in a storable format.
type Store struct {
	Service Service `json:"service,omitempty" yaml:"service,omitempty"`
	Stream  Stream  `json:"stream,omitempty"  yaml:"stream,omitempty"`
}

// Service defines the analysis service to stream to.
type Service struct {
	// Endpoint is the websocket URL of the service.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Token is the authentication token.
	// Falls back to the FRAMELINK_TOKEN environment variable when empty.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Stream defines capture and transmission settings.
type Stream struct {
	// FrameRate is the target transmission rate in frames per second.
	FrameRate int `json:"frameRate,omitempty" yaml:"frameRate,omitempty"`

	// Quality is the JPEG quality, 1-100.
	Quality int `json:"quality,omitempty" yaml:"quality,omitempty"`

	// Width and Height are the requested capture frame size.
	Width  int `json:"width,omitempty"  yaml:"width,omitempty"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`
}

// Clone returns a full copy of the store.
func (s Store) Clone() (Store, error) {
	copied, err := copystructure.Copy(s)
	if err != nil {
		return Store{}, err
	}
	return copied.(Store), nil //nolint:forcetypeassert
}
