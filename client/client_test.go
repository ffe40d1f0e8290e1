package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelink/framelink/capture"
	"github.com/framelink/framelink/config"
	"github.com/framelink/framelink/transport"
)

// fakeConn is an in-memory transport connection scripted by tests.
type fakeConn struct {
	inbound  chan []byte // server to client
	sent     chan []byte // client to server
	closeCnt atomic.Int32
	closing  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		sent:    make(chan []byte, 4096),
		closing: make(chan struct{}),
	}
}

func (c *fakeConn) Send(data []byte) error {
	select {
	case <-c.closing:
		return errors.New("connection closed")
	default:
	}
	c.sent <- data
	return nil
}

func (c *fakeConn) Receive(wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closing:
		return nil, errors.New("connection closed")
	case <-timer.C:
		return nil, transport.ErrReceiveTimeout
	}
}

func (c *fakeConn) Close() error {
	if c.closeCnt.Add(1) == 1 {
		close(c.closing)
	}
	return nil
}

// serverPush queues a message as if the service sent it.
func (c *fakeConn) serverPush(msg string) {
	c.inbound <- []byte(msg)
}

// sentFrames drains and returns all frame messages sent so far.
func (c *fakeConn) sentFrames(t *testing.T) []map[string]any {
	t.Helper()

	var frames []map[string]any
	for {
		select {
		case data := <-c.sent:
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			if m["type"] == "frame" {
				frames = append(frames, m)
			}
		default:
			return frames
		}
	}
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d fakeDialer) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// fakeSource is a capture source with scriptable failures.
type fakeSource struct {
	openCnt  atomic.Int32
	closeCnt atomic.Int32
	readCnt  atomic.Int32
	openErr  error

	// failEvery makes every n-th read fail (0 disables).
	failEvery int32

	// readDelay stretches each read so a release racing a read
	// would be observable.
	readDelay time.Duration
	reading   atomic.Bool
	released  atomic.Bool
	misused   atomic.Bool // read after release, or release mid-read

	inner *capture.Synthetic
}

func newFakeSource() *fakeSource {
	return &fakeSource{inner: capture.NewSynthetic(8, 8)}
}

func (s *fakeSource) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.openCnt.Add(1)
	return s.inner.Open()
}

func (s *fakeSource) Read() (*capture.Frame, error) {
	if s.released.Load() {
		s.misused.Store(true)
		return nil, errors.New("source released")
	}
	s.reading.Store(true)
	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}
	s.reading.Store(false)

	n := s.readCnt.Add(1)
	if s.failEvery > 0 && n%s.failEvery == 0 {
		return nil, errors.New("capture glitch")
	}
	return s.inner.Read()
}

func (s *fakeSource) Close() error {
	if s.reading.Load() {
		s.misused.Store(true)
	}
	s.released.Store(true)
	s.closeCnt.Add(1)
	return s.inner.Close()
}

type testInstance struct {
	cfg *config.Config
	src capture.Source
}

func (i *testInstance) Config() *config.Config        { return i.cfg }
func (i *testInstance) CaptureSource() capture.Source { return i.src }

func testConfig(frameRate int) *config.Config {
	return config.MakeTestConfig(config.Store{
		Service: config.Service{
			Endpoint: "wss://service.test/ws/live/v1/",
			Token:    "test-token",
		},
		Stream: config.Stream{
			FrameRate: frameRate,
			Quality:   70,
			Width:     8,
			Height:    8,
		},
	})
}

func newTestClient(t *testing.T, conn *fakeConn, src capture.Source, frameRate int) *Client {
	t.Helper()

	c, err := New(
		&testInstance{cfg: testConfig(frameRate), src: src},
		fakeDialer{conn: conn},
	)
	require.NoError(t, err)

	// Shorten the fixed windows so tests stay fast.
	c.authTimeout = 400 * time.Millisecond
	c.authPoll = 20 * time.Millisecond
	c.receivePoll = 20 * time.Millisecond

	t.Cleanup(func() {
		c.Stop()
		c.mgr.Cancel()
		c.mgr.WaitForWorkers(5 * time.Second)
	})
	return c
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAuthTimeout(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	c := newTestClient(t, conn, newFakeSource(), 10)

	require.NoError(t, c.connect(context.Background()))

	start := time.Now()
	err := c.mgr.Do("auth", c.authenticate)
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthTimeout, authErr.Kind)
	// The window elapsed instead of hanging.
	assert.Less(t, time.Since(start), 2*c.authTimeout)
}

func TestAuthRejected(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	c := newTestClient(t, conn, src, 10)

	conn.serverPush(`{"type":"error","message":"bad token"}`)

	require.NoError(t, c.Start())
	waitFor(t, 5*time.Second, func() bool {
		select {
		case <-c.Done():
			return true
		default:
			return false
		}
	})

	// The rejection reason is carried and no frame was ever transmitted.
	assert.Empty(t, conn.sentFrames(t))
	assert.Equal(t, int32(0), src.openCnt.Load())
	assert.Equal(t, int32(1), conn.closeCnt.Load())
}

func TestAuthRejectedReason(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	c := newTestClient(t, conn, newFakeSource(), 10)

	require.NoError(t, c.connect(context.Background()))
	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.mgr.Do("auth", c.authenticate))
	assert.Equal(t, StateAuthenticated, c.State())

	// A fresh client against a rejecting service.
	conn2 := newFakeConn()
	c2 := newTestClient(t, conn2, newFakeSource(), 10)
	require.NoError(t, c2.connect(context.Background()))
	conn2.serverPush(`{"type":"auth_success_not_yet"}`) // unrelated, ignored
	conn2.serverPush(`{"type":"error","message":"bad token"}`)

	err := c2.mgr.Do("auth", c2.authenticate)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthInvalidCredential, authErr.Kind)
	assert.Equal(t, "bad token", authErr.Reason)
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()

	c, err := New(
		&testInstance{cfg: testConfig(10), src: newFakeSource()},
		fakeDialer{err: errors.New("connection refused")},
	)
	require.NoError(t, err)

	err = c.connect(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestSessionStreamAckDisconnect(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	c := newTestClient(t, conn, src, 100)

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	// Wait until frames are flowing.
	waitFor(t, 5*time.Second, func() bool {
		return c.tracker.FrameCount() >= 5
	})
	assert.Equal(t, StateStreaming, c.State())
	assert.True(t, c.IsStreaming())

	// Acknowledge frame 1; latency must be non-negative, backlog overwritten.
	conn.serverPush(`{"type":"frame_received","frame_number":1,"total_frames":3}`)
	waitFor(t, 5*time.Second, func() bool {
		return c.tracker.Backlog() == 3
	})
	assert.GreaterOrEqual(t, c.tracker.AverageLatency(), float64(0))

	// A service-reported error does not end the session.
	conn.serverPush(`{"type":"error","message":"transient"}`)
	conn.serverPush(`{"type":"processing_started","message":"analyzing"}`)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, c.IsStreaming())

	// A service disconnect ends it within one poll interval.
	conn.serverPush(`{"type":"disconnect","reason":"server shutdown"}`)
	select {
	case <-c.Done():
	case <-time.After(time.Second + c.receivePoll):
		t.Fatal("session did not end after server disconnect")
	}

	// Resources released exactly once.
	assert.Equal(t, int32(1), conn.closeCnt.Load())
	assert.Equal(t, int32(1), src.closeCnt.Load())
	assert.Equal(t, StateClosing, c.State())
}

func TestSequenceNumbersDespiteCaptureFailures(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	src.failEvery = 2 // every other capture fails
	c := newTestClient(t, conn, src, 200)

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	waitFor(t, 5*time.Second, func() bool {
		return c.tracker.FrameCount() >= 10
	})
	c.Stop()

	frames := conn.sentFrames(t)
	require.GreaterOrEqual(t, len(frames), 10)
	for i, frame := range frames {
		assert.Equal(t, float64(i+1), frame["frame_number"], "sequence numbers must have no gaps")
		assert.NotEmpty(t, frame["frame_data"])
		assert.Greater(t, frame["timestamp"], float64(0))
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	c := newTestClient(t, conn, src, 10)

	// Before anything was opened.
	c.Stop()
	c.Stop()
	assert.Equal(t, int32(0), src.closeCnt.Load())
	assert.Equal(t, int32(0), conn.closeCnt.Load())
	assert.Equal(t, StateClosing, c.State())
}

func TestStopReleasesCaptureBetweenReads(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	src.readDelay = 5 * time.Millisecond
	c := newTestClient(t, conn, src, 100)

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	waitFor(t, 5*time.Second, func() bool {
		return src.readCnt.Load() >= 3
	})

	// Stop while the producer is mid-cycle. The release must wait
	// out an in-flight read instead of racing it.
	require.NoError(t, c.Stop())
	waitFor(t, 5*time.Second, func() bool {
		return src.closeCnt.Load() == 1
	})

	assert.False(t, src.misused.Load(), "source must only be released between reads")
}

func TestConnectionLossEndsSession(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	c := newTestClient(t, conn, newFakeSource(), 100)

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	waitFor(t, 5*time.Second, func() bool {
		return c.IsStreaming()
	})

	// Simulate the connection dropping out from under the session.
	require.NoError(t, conn.Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after connection loss")
	}
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	c := newTestClient(t, conn, newFakeSource(), 100)

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	waitFor(t, 5*time.Second, func() bool {
		return c.IsStreaming()
	})

	conn.serverPush(`{garbage`)
	conn.serverPush(`{"type":"frame_received","frame_number":1,"total_frames":7}`)

	waitFor(t, 5*time.Second, func() bool {
		return c.tracker.Backlog() == 7
	})
	assert.True(t, c.IsStreaming())
}

func TestProducerPacing(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	src := newFakeSource()
	c := newTestClient(t, conn, src, 50) // 20ms interval

	conn.serverPush(`{"type":"auth_success"}`)
	require.NoError(t, c.Start())

	waitFor(t, 5*time.Second, func() bool {
		return c.IsStreaming()
	})

	start := time.Now()
	startCnt := c.tracker.FrameCount()
	time.Sleep(time.Second)
	sent := c.tracker.FrameCount() - startCnt
	elapsed := time.Since(start)

	// Expect roughly frameRate * elapsed frames; generous tolerance
	// for scheduling noise.
	expected := 50 * elapsed.Seconds()
	assert.InDelta(t, expected, float64(sent), expected*0.4)
}
