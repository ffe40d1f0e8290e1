// Package client implements the streaming session: connect,
// authenticate, stream frames and consume service messages until
// either side ends the session.
package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/framelink/framelink/capture"
	"github.com/framelink/framelink/config"
	"github.com/framelink/framelink/mgr"
	"github.com/framelink/framelink/track"
	"github.com/framelink/framelink/transport"
)

// Session timing. The sub-timeouts exist so the waits are
// interruptible, not to rate-limit anything.
const (
	authTimeout  = 10 * time.Second
	authPoll     = time.Second
	receivePoll  = time.Second
	faultBackoff = 100 * time.Millisecond

	statusReportInterval = 30 * time.Second
)

// Client streams frames from the capture source to the analysis service.
type Client struct {
	mgr      *mgr.Manager
	instance instance

	dialer  transport.Dialer
	encoder *capture.Encoder
	tracker *track.Tracker

	state       State
	conn        transport.Conn
	captureOpen bool
	stateLock   sync.Mutex

	// captureLock serializes capture reads and the capture release,
	// so the source is only closed between frames.
	captureLock sync.Mutex

	streaming *abool.AtomicBool
	statsOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	// Timing knobs, fixed in production, shortened in tests.
	authTimeout time.Duration
	authPoll    time.Duration
	receivePoll time.Duration
}

// instance is an interface subset of the root instance.
type instance interface {
	Config() *config.Config
	CaptureSource() capture.Source
}

// New returns a new client.
func New(instance instance, dialer transport.Dialer) (*Client, error) {
	encoder, err := capture.NewEncoder(instance.Config().Stream.Quality)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	return &Client{
		mgr:         mgr.New("client"),
		instance:    instance,
		dialer:      dialer,
		encoder:     encoder,
		tracker:     track.New(),
		streaming:   abool.New(),
		done:        make(chan struct{}),
		authTimeout: authTimeout,
		authPoll:    authPoll,
		receivePoll: receivePoll,
	}, nil
}

// Manager returns the module manager.
func (c *Client) Manager() *mgr.Manager {
	return c.mgr
}

// Start starts the streaming session.
func (c *Client) Start() error {
	c.mgr.Go("session", c.sessionWorker)
	c.mgr.Repeat("stream status", statusReportInterval, c.reportStatus)
	return nil
}

// Stop ends the session and releases all resources.
func (c *Client) Stop() error {
	c.disconnect()
	return nil
}

// Done returns a channel that is closed when the session has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// State returns the current session state.
func (c *Client) State() State {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.state
}

// Tracker returns the session latency tracker.
func (c *Client) Tracker() *track.Tracker {
	return c.tracker
}

// IsStreaming returns whether the session is currently streaming.
func (c *Client) IsStreaming() bool {
	return c.streaming.IsSet()
}

func (c *Client) setState(s State) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.state = s
}

// transport returns the connection, or nil after disconnect.
func (c *Client) transport() transport.Conn {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.conn
}

// sessionWorker drives one complete session:
// connect, authenticate, stream, disconnect.
func (c *Client) sessionWorker(w *mgr.WorkerCtx) error {
	// One session per client, there is no reconnect policy.
	select {
	case <-c.done:
		return nil
	default:
	}

	defer c.doneOnce.Do(func() { close(c.done) })
	defer c.disconnect()

	// Setup phase. Failures here are fatal to the session.
	if err := c.connect(w.Ctx()); err != nil {
		w.Error("connection failed", "err", err)
		return nil
	}
	if err := c.authenticate(w); err != nil {
		w.Error("authentication failed", "err", err)
		return nil
	}
	if err := c.instance.CaptureSource().Open(); err != nil {
		w.Error("failed to open capture source", "err", err)
		return nil
	}
	c.stateLock.Lock()
	c.captureOpen = true
	c.stateLock.Unlock()

	// Stream.
	c.setState(StateStreaming)
	c.streaming.Set()
	w.Info(
		"starting stream",
		"frameRate", c.instance.Config().Stream.FrameRate,
		"quality", c.instance.Config().Stream.Quality,
	)

	producerDone := make(chan struct{})
	consumerDone := make(chan struct{})
	closeProducerDone := sync.OnceFunc(func() { close(producerDone) })
	closeConsumerDone := sync.OnceFunc(func() { close(consumerDone) })
	c.mgr.Go("frame producer", func(w *mgr.WorkerCtx) error {
		defer closeProducerDone()
		defer c.streaming.UnSet()
		c.produceFrames(w)
		return nil
	})
	c.mgr.Go("message consumer", func(w *mgr.WorkerCtx) error {
		defer closeConsumerDone()
		defer c.streaming.UnSet()
		c.consumeMessages(w)
		return nil
	})

	// Either loop ending (cleared streaming flag, terminal service
	// message or worker cancellation) ends the session.
	<-producerDone
	<-consumerDone
	return nil
}

// reportStatus periodically logs the session bookkeeping.
func (c *Client) reportStatus(w *mgr.WorkerCtx) error {
	if !c.streaming.IsSet() {
		return nil
	}

	w.Debug(
		"stream status",
		"frames", c.tracker.FrameCount(),
		"pendingAcks", c.tracker.PendingLen(),
		"backlog", c.tracker.Backlog(),
		"avgAckMs", c.tracker.AverageLatency(),
	)
	return nil
}
