package client

import (
	"errors"
	"time"

	"github.com/framelink/framelink/mgr"
	"github.com/framelink/framelink/transport"
	"github.com/framelink/framelink/wire"
)

// ackSummaryEvery is how often (in frame numbers) an acknowledgement
// summary is logged. A monitoring side effect, not protocol.
const ackSummaryEvery = 50

// consumeMessages receives and dispatches inbound service messages.
// The bounded receive wait is what lets the loop notice a cleared
// streaming flag within about a second.
func (c *Client) consumeMessages(w *mgr.WorkerCtx) {
	for c.streaming.IsSet() && !w.IsDone() {
		conn := c.transport()
		if conn == nil {
			return
		}

		data, err := conn.Receive(c.receivePoll)
		switch {
		case errors.Is(err, transport.ErrReceiveTimeout):
			continue
		case err != nil:
			// The connection is gone. There is no reconnect policy,
			// so this ends the session.
			w.Warn("connection lost", "err", err)
			c.streaming.UnSet()
			return
		}

		c.handleMessage(w, data)
	}
}

// handleMessage dispatches one inbound message by its type tag.
// Malformed payloads are dropped, unexpected faults back off shortly.
func (c *Client) handleMessage(w *mgr.WorkerCtx, data []byte) {
	defer func() {
		if panicVal := recover(); panicVal != nil {
			w.Error("message handler fault", "panic", panicVal)
			time.Sleep(faultBackoff)
		}
	}()

	msg, err := wire.Parse(data)
	if err != nil {
		w.Warn("dropping malformed message", "err", err)
		return
	}

	switch v := msg.(type) {
	case wire.FrameReceived:
		c.handleAck(w, v)

	case wire.ProcessingStarted:
		w.Info("processing started", "message", v.Message)

	case wire.ProcessingComplete:
		w.Info(
			"processing complete",
			"framesProcessed", v.FramesProcessed,
			"prediction", v.Result.Prediction,
			"aiProbability", v.Result.AIProbability,
			"confidence", v.Result.Confidence,
			"processingTimeSeconds", v.Result.ProcessingTimeSeconds,
		)

	case wire.ServerError:
		// Service-reported errors are observational and non-fatal.
		w.Error("service reported error", "message", v.Message)

	case wire.Disconnect:
		// The one message kind with a control flow effect.
		w.Warn("service disconnecting", "reason", v.Reason)
		c.streaming.UnSet()

	default:
		w.Debug("ignoring unrecognized message", "type", msg.Kind())
	}
}

// handleAck resolves a frame acknowledgement against the tracker.
func (c *Client) handleAck(w *mgr.WorkerCtx, ack wire.FrameReceived) {
	// Unknown sequence numbers (already evicted) leave the latency
	// samples untouched; the backlog is overwritten either way.
	c.tracker.RecordAck(ack.FrameNumber, time.Now())
	c.tracker.SetBacklog(ack.TotalFrames)

	if ack.FrameNumber%ackSummaryEvery == 0 {
		w.Info(
			"frame acknowledged",
			"frameNumber", ack.FrameNumber,
			"backlog", c.tracker.Backlog(),
			"avgAckMs", c.tracker.AverageLatency(),
		)
	}
}
