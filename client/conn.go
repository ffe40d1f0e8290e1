package client

import (
	"context"
	"errors"
	"time"

	"github.com/framelink/framelink/mgr"
	"github.com/framelink/framelink/transport"
	"github.com/framelink/framelink/wire"
)

// connect opens the transport to the configured endpoint and records
// the connection start time.
func (c *Client) connect(ctx context.Context) error {
	endpoint := c.instance.Config().Service.Endpoint
	c.mgr.Info("connecting", "endpoint", endpoint)

	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return &ConnectionError{Endpoint: endpoint, Err: err}
	}

	c.stateLock.Lock()
	c.conn = conn
	c.state = StateConnected
	c.stateLock.Unlock()

	c.tracker.MarkConnected(time.Now())
	c.mgr.Info("connected")
	return nil
}

// authenticate transmits the auth request and polls for a definitive
// response for up to the auth window. Unrelated message kinds arriving
// during the window are discarded.
func (c *Client) authenticate(w *mgr.WorkerCtx) error {
	conn := c.transport()
	if conn == nil {
		return &AuthError{Kind: AuthTransport, Err: errors.New("not connected")}
	}
	c.mgr.Info("authenticating")

	data, err := wire.Marshal(wire.NewAuth(c.instance.Config().Service.Token))
	if err != nil {
		return &AuthError{Kind: AuthTransport, Err: err}
	}
	if err := conn.Send(data); err != nil {
		return &AuthError{Kind: AuthTransport, Err: err}
	}

	deadline := time.Now().Add(c.authTimeout)
	for time.Now().Before(deadline) {
		if w.IsDone() {
			return &AuthError{Kind: AuthTransport, Err: w.Ctx().Err()}
		}

		data, err := conn.Receive(c.authPoll)
		switch {
		case errors.Is(err, transport.ErrReceiveTimeout):
			continue
		case err != nil:
			return &AuthError{Kind: AuthTransport, Err: err}
		}

		msg, err := wire.Parse(data)
		if err != nil {
			w.Warn("dropping malformed message", "err", err)
			continue
		}

		switch v := msg.(type) {
		case wire.AuthSuccess:
			c.setState(StateAuthenticated)
			c.mgr.Info("authentication successful")
			return nil
		case wire.ServerError:
			return &AuthError{Kind: AuthInvalidCredential, Reason: v.Message}
		default:
			// Not an auth response, ignore.
		}
	}

	return &AuthError{Kind: AuthTimeout}
}

// disconnect ends the session and releases all resources.
// It is idempotent and safe to call at any time, also before
// anything was opened.
func (c *Client) disconnect() {
	// Clearing the flag first signals both loops to stop.
	c.streaming.UnSet()

	c.stateLock.Lock()
	c.state = StateClosing
	conn := c.conn
	c.conn = nil
	captureOpen := c.captureOpen
	c.captureOpen = false
	c.stateLock.Unlock()

	if captureOpen {
		// The streaming flag is already cleared, so taking the capture
		// lock waits out at most one in-flight read before the release.
		c.captureLock.Lock()
		err := c.instance.CaptureSource().Close()
		c.captureLock.Unlock()
		if err != nil {
			c.mgr.Warn("failed to release capture source", "err", err)
		} else {
			c.mgr.Info("capture source released")
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.mgr.Warn("failed to close connection", "err", err)
		} else {
			c.mgr.Info("connection closed")
		}
	}

	c.statsOnce.Do(c.reportSessionStats)
}

// reportSessionStats emits the final session statistics, if a
// connection was ever established.
func (c *Client) reportSessionStats() {
	frames, duration, avgFPS, ok := c.tracker.Stats(time.Now())
	if !ok {
		return
	}

	c.mgr.Info(
		"session stats",
		"duration", duration.Round(100*time.Millisecond),
		"framesSent", frames,
		"avgFps", avgFPS,
	)
}
