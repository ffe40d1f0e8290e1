package framelink

import (
	"fmt"

	"github.com/framelink/framelink/capture"
	"github.com/framelink/framelink/client"
	"github.com/framelink/framelink/config"
	"github.com/framelink/framelink/mgr"
	"github.com/framelink/framelink/transport"
)

// Instance is an instance of a framelink streaming client.
type Instance struct {
	*mgr.Group

	version string
	config  *config.Config

	source capture.Source
	client *client.Client
}

// New returns a new framelink instance with the synthetic capture
// source. Use NewWithSource to plug in a real capture device.
func New(version string, c *config.Config) (*Instance, error) {
	return NewWithSource(version, c, capture.NewSynthetic(c.Stream.Width, c.Stream.Height))
}

// NewWithSource returns a new framelink instance streaming from the
// given capture source.
func NewWithSource(version string, c *config.Config, source capture.Source) (*Instance, error) {
	// Create instance to pass it to modules.
	instance := &Instance{
		version: version,
		config:  c,
		source:  source,
	}

	// Create streaming client.
	var err error
	instance.client, err = client.New(instance, transport.WebSocketDialer{})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	// Add all modules to instance group.
	instance.Group = mgr.NewGroup(
		instance.client,
	)

	return instance, nil
}

// Version returns the version.
func (i *Instance) Version() string {
	return i.version
}

// Config returns the config.
func (i *Instance) Config() *config.Config {
	return i.config
}

// CaptureSource returns the capture source.
func (i *Instance) CaptureSource() capture.Source {
	return i.source
}

// Client returns the streaming client.
func (i *Instance) Client() *client.Client {
	return i.client
}
