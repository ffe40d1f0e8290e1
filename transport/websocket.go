package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handshake and keepalive settings, applied to every dialed connection.
const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 20 * time.Second
	pingWriteTimeout = 10 * time.Second

	recvBufferSize = 32
)

// WebSocketDialer dials websocket endpoints (ws:// or wss://).
type WebSocketDialer struct{}

// Dial opens a websocket connection to the given endpoint.
func (WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	wsc, _, err := dialer.DialContext(ctx, endpoint, nil) //nolint:bodyclose // gorilla owns the response body.
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &wsConn{
		ws:        wsc,
		recv:      make(chan []byte, recvBufferSize),
		closeDone: make(chan struct{}),
	}
	go c.readLoop()
	go c.keepAlive()
	return c, nil
}

// wsConn adapts a gorilla websocket connection to Conn.
//
// Gorilla read errors are permanent, so all reading happens in a
// single loop feeding a channel; Receive implements its bounded
// wait on that channel.
type wsConn struct {
	ws *websocket.Conn

	recv     chan []byte
	readErr  error
	readLock sync.Mutex

	writeLock sync.Mutex
	closed    bool
	closeDone chan struct{}
	closeLock sync.Mutex
}

func (c *wsConn) readLoop() {
	defer close(c.recv)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readLock.Lock()
			c.readErr = err
			c.readLock.Unlock()
			return
		}

		select {
		case c.recv <- data:
		case <-c.closeDone:
			return
		}
	}
}

// keepAlive sends periodic pings until the connection is closed.
// Pongs are consumed by the read loop as control frames.
func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := c.ws.WriteControl(
				websocket.PingMessage, nil,
				time.Now().Add(pingWriteTimeout),
			)
			if err != nil {
				return
			}
		case <-c.closeDone:
			return
		}
	}
}

// Send transmits one text message.
func (c *wsConn) Send(data []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Receive waits up to the given duration for one inbound message.
func (c *wsConn) Receive(wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case data, ok := <-c.recv:
		if !ok {
			c.readLock.Lock()
			err := c.readErr
			c.readLock.Unlock()
			if err == nil {
				return nil, errors.New("receive message: connection closed")
			}
			return nil, fmt.Errorf("receive message: %w", err)
		}
		return data, nil

	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

// Close sends a close message and closes the underlying connection.
func (c *wsConn) Close() error {
	c.closeLock.Lock()
	defer c.closeLock.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeDone)

	// Best effort close handshake.
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return c.ws.Close()
}
