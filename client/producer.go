package client

import (
	"time"

	"github.com/framelink/framelink/capture"
	"github.com/framelink/framelink/mgr"
	"github.com/framelink/framelink/wire"
)

// produceFrames is the paced capture-encode-send loop. It runs until
// the streaming flag is cleared or the worker is canceled.
func (c *Client) produceFrames(w *mgr.WorkerCtx) {
	interval := time.Second / time.Duration(c.instance.Config().Stream.FrameRate)
	lastDispatch := time.Now()

	for c.streaming.IsSet() && !w.IsDone() {
		c.produceOne(w)

		// Sleep the remainder of the target interval, so the loop
		// self-corrects for capture, encoding and send jitter.
		if sleep := interval - time.Since(lastDispatch); sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-w.Done():
				return
			}
		}
		lastDispatch = time.Now()
	}
}

// produceOne captures, encodes and sends a single frame.
// Every failure mode is absorbed: a capture or encode failure skips
// the iteration, a send failure is logged without retry, and an
// unexpected fault backs off shortly to avoid a tight error spin.
func (c *Client) produceOne(w *mgr.WorkerCtx) {
	defer func() {
		if panicVal := recover(); panicVal != nil {
			w.Error("streaming fault", "panic", panicVal)
			time.Sleep(faultBackoff)
		}
	}()

	frame, err := c.readFrame()
	if err != nil {
		w.Warn("failed to capture frame", "err", err)
		return
	}
	if frame == nil {
		// Source was released, the loop ends on the next check.
		return
	}

	frameData, err := c.encoder.Encode(frame)
	if err != nil {
		w.Warn("failed to encode frame", "err", err)
		return
	}

	c.sendFrame(w, frameData)
}

// readFrame reads one frame under the capture lock. Once the
// streaming flag is cleared the source may be released at any moment,
// so the flag is re-checked while the lock is held. Returns a nil
// frame without error when streaming has ended.
func (c *Client) readFrame() (*capture.Frame, error) {
	c.captureLock.Lock()
	defer c.captureLock.Unlock()

	if !c.streaming.IsSet() {
		return nil, nil
	}
	return c.instance.CaptureSource().Read()
}

// sendFrame assigns the next sequence number, records the send time
// and transmits the frame message. Fire and forget: a send failure
// does not stop the loop and is not retried.
func (c *Client) sendFrame(w *mgr.WorkerCtx, frameData string) {
	conn := c.transport()
	if conn == nil {
		return
	}

	now := time.Now()
	seq := c.tracker.NextFrame(now)

	data, err := wire.Marshal(wire.NewFrame(seq, frameData, epochSeconds(now)))
	if err != nil {
		w.Warn("failed to marshal frame", "frameNumber", seq, "err", err)
		return
	}
	if err := conn.Send(data); err != nil {
		w.Warn("failed to send frame", "frameNumber", seq, "err", err)
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
