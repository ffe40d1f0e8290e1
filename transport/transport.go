// Package transport provides the message-oriented connection
// to the analysis service.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrReceiveTimeout is returned by Receive when the bounded
// wait elapsed without an inbound message.
var ErrReceiveTimeout = errors.New("receive timed out")

// Conn is a persistent message-oriented connection carrying
// UTF-8 JSON text messages in both directions.
// Send and Receive are each safe from one goroutine at a time,
// but not reentrant.
type Conn interface {
	// Send transmits one message.
	Send(data []byte) error

	// Receive waits up to the given duration for one inbound message.
	// Returns ErrReceiveTimeout when the wait elapses.
	Receive(wait time.Duration) ([]byte, error)

	// Close closes the connection. Safe to call multiple times.
	Close() error
}

// Dialer opens connections to a service endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}
