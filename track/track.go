// Package track keeps bounded per-session bookkeeping of in-flight
// frame sends, recent round-trip latencies and the reported service
// backlog.
package track

import (
	"sync"
	"time"
)

// Bookkeeping bounds.
const (
	// maxPendingSends caps the in-flight send timestamps. When the cap
	// is exceeded, entries with the smallest sequence numbers go first.
	maxPendingSends = 1000

	// maxLatencySamples caps the recent round-trip latencies,
	// oldest sample evicted first.
	maxLatencySamples = 50
)

// Tracker tracks one session. All methods are safe for concurrent use.
type Tracker struct {
	lock sync.Mutex

	lastSeq uint64
	pending map[uint64]time.Time
	// Sequence numbers in insertion order, which is ascending.
	// May contain sequence numbers already removed from pending.
	pendingOrder []uint64

	samples   [maxLatencySamples]float64
	sampleCnt int
	sampleAt  int

	backlog int

	frameCnt    uint64
	connectedAt time.Time
}

// New returns a new empty tracker.
func New() *Tracker {
	return &Tracker{
		pending: make(map[uint64]time.Time, maxPendingSends),
	}
}

// NextFrame assigns the next frame sequence number, records its send
// time and counts the frame. Sequence numbers start at 1 and have no gaps.
func (t *Tracker) NextFrame(sendTime time.Time) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.lastSeq++
	t.frameCnt++
	t.recordSend(t.lastSeq, sendTime)
	return t.lastSeq
}

// RecordSend records the send time of the given sequence number,
// evicting the smallest sequence numbers when the cap is exceeded.
func (t *Tracker) RecordSend(seq uint64, sendTime time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.recordSend(seq, sendTime)
}

func (t *Tracker) recordSend(seq uint64, sendTime time.Time) {
	t.pending[seq] = sendTime
	t.pendingOrder = append(t.pendingOrder, seq)

	for len(t.pending) > maxPendingSends {
		evict := t.pendingOrder[0]
		t.pendingOrder = t.pendingOrder[1:]
		delete(t.pending, evict)
	}

	// Acks resolving behind a long-pending front entry leave stale
	// entries in the queue. Compact before it outgrows twice its cap.
	if len(t.pendingOrder) > 2*maxPendingSends {
		live := t.pendingOrder[:0]
		for _, s := range t.pendingOrder {
			if _, ok := t.pending[s]; ok {
				live = append(live, s)
			}
		}
		t.pendingOrder = live
	}
}

// RecordAck resolves the given sequence number against the pending
// sends. If it is known, the round-trip latency in milliseconds is
// computed, appended to the samples and returned. Unknown sequence
// numbers (e.g. already evicted) return false and change nothing.
func (t *Tracker) RecordAck(seq uint64, now time.Time) (latencyMs float64, ok bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	sendTime, ok := t.pending[seq]
	if !ok {
		return 0, false
	}
	delete(t.pending, seq)

	// Drop acked entries from the front of the order queue so it
	// does not grow with every frame of the session.
	for len(t.pendingOrder) > 0 {
		if _, live := t.pending[t.pendingOrder[0]]; live {
			break
		}
		t.pendingOrder = t.pendingOrder[1:]
	}

	latencyMs = float64(now.Sub(sendTime)) / float64(time.Millisecond)
	t.samples[t.sampleAt] = latencyMs
	t.sampleAt = (t.sampleAt + 1) % maxLatencySamples
	if t.sampleCnt < maxLatencySamples {
		t.sampleCnt++
	}

	return latencyMs, true
}

// SetBacklog overwrites the last reported service backlog depth.
func (t *Tracker) SetBacklog(n int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.backlog = n
}

// Backlog returns the last reported service backlog depth.
func (t *Tracker) Backlog() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.backlog
}

// AverageLatency returns the mean of the recent latency samples in
// milliseconds, or 0 when there are none.
func (t *Tracker) AverageLatency() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.sampleCnt == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < t.sampleCnt; i++ {
		sum += t.samples[i]
	}
	return sum / float64(t.sampleCnt)
}

// PendingLen returns the current amount of unacknowledged sends.
func (t *Tracker) PendingLen() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.pending)
}

// FrameCount returns the amount of frames sent this session.
func (t *Tracker) FrameCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.frameCnt
}

// MarkConnected records the connection start time, once.
func (t *Tracker) MarkConnected(now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.connectedAt.IsZero() {
		t.connectedAt = now
	}
}

// Stats reports the final session statistics. Returns false when the
// connection was never established.
func (t *Tracker) Stats(now time.Time) (frames uint64, duration time.Duration, avgFPS float64, ok bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.connectedAt.IsZero() {
		return 0, 0, 0, false
	}

	frames = t.frameCnt
	duration = now.Sub(t.connectedAt)
	if duration > 0 {
		avgFPS = float64(frames) / duration.Seconds()
	}
	return frames, duration, avgFPS, true
}
