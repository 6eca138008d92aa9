package rudp

import (
	"math/bits"
	"time"
)

// frameLogEntry records one transmitted frame until it is acknowledged or
// ages out of the transfer window's tail (spec.md §4.D).
type frameLogEntry struct {
	size        int
	sendTimeMs  int64
	nonce       byte
	rateLimited bool
	acked       bool
	refs        []fragRef // only datagrams sent with resend=true are listed
}

// ackFeedback is one {last_send_time, total_ack_size, rate_limited} tuple
// submitted to the congestion controller's feedback aggregator (spec.md
// §4.D step 5).
type ackFeedback struct {
	LastSendTimeMs int64
	TotalAckSize   int
	RateLimited    bool
}

// frameQueue is the sender-side frame log: the outstanding frames, their
// transfer window, and the bridge from incoming AckGroups to
// PacketSender.AckFragment and the reorder/loss-history machinery
// (spec.md §4.D). Entries are addressed by frame sequence ID directly
// (map-keyed) rather than by a fixed-size ring indexed modulo window
// size. windowSize and tailSize are fixed when the queue is constructed.
type frameQueue struct {
	sender  *PacketSender
	reorder *reorderBuffer
	loss    *lossHistory

	windowSize int
	tailSize   int

	logBase    uint32
	logNext    uint32
	windowBase uint32
	hasWindow  bool

	entries map[uint32]*frameLogEntry

	rateLimitedPending bool

	feedback []ackFeedback

	// lastRTT is the RTT estimate used whenever classify() reports a loss
	// to the loss history; refreshed by whichever operation (ack,
	// advance, forget) most recently supplied one.
	lastRTT time.Duration
}

func newFrameQueue(sender *PacketSender, reorder *reorderBuffer, loss *lossHistory, windowSize, tailSize int) *frameQueue {
	return &frameQueue{
		sender:     sender,
		reorder:    reorder,
		loss:       loss,
		windowSize: windowSize,
		tailSize:   tailSize,
		entries:    make(map[uint32]*frameLogEntry),
	}
}

// canPush reports whether the transfer window has room for another
// frame.
func (q *frameQueue) canPush() bool {
	return int(q.logNext-q.windowBase) < q.windowSize
}

// push appends a new log entry under the next frame sequence ID,
// capturing the pending rate_limited bit (then clearing it), and returns
// that ID.
func (q *frameQueue) push(size int, nowMs int64, refs []fragRef, nonce byte) uint32 {
	id := q.logNext
	q.entries[id] = &frameLogEntry{
		size:        size,
		sendTimeMs:  nowMs,
		nonce:       nonce & 1,
		rateLimited: q.rateLimitedPending,
		refs:        refs,
	}
	q.rateLimitedPending = false
	q.logNext++
	return id
}

func (q *frameQueue) markRateLimited() { q.rateLimitedPending = true }

// takeFeedback drains and returns every ack-feedback tuple accumulated
// since the last call, for the congestion controller to consume in
// step().
func (q *frameQueue) takeFeedback() []ackFeedback {
	if len(q.feedback) == 0 {
		return nil
	}
	out := q.feedback
	q.feedback = nil
	return out
}

// acknowledgeGroup processes one incoming AckGroup (spec.md §4.D
// acknowledge_group).
func (q *frameQueue) acknowledgeGroup(g AckGroup, rtt time.Duration) {
	q.lastRTT = rtt
	if g.Bitfield == 0 {
		return // dud ack frame, nothing to do
	}
	hi := bits.Len32(g.Bitfield) - 1

	span := make([]*frameLogEntry, hi+1)
	for i := 0; i <= hi; i++ {
		e, ok := q.entries[g.BaseID+uint32(i)]
		if !ok {
			return // references an expired or not-yet-sent frame
		}
		span[i] = e
	}

	var trueNonce byte
	for i := 0; i <= hi; i++ {
		if g.Bitfield&(1<<uint(i)) != 0 {
			trueNonce ^= span[i].nonce
		}
	}
	if trueNonce != g.Nonce&1 {
		return // forged bulk ack: discard the whole group
	}

	var totalSize int
	var lastSend int64
	var rateLimited bool
	any := false
	for i := 0; i <= hi; i++ {
		if g.Bitfield&(1<<uint(i)) == 0 {
			continue
		}
		e := span[i]
		if e.acked {
			continue
		}
		e.acked = true
		for _, ref := range e.refs {
			q.sender.AckFragment(ref.packetID, ref.fragment)
		}
		totalSize += e.size
		if e.sendTimeMs > lastSend {
			lastSend = e.sendTimeMs
			rateLimited = e.rateLimited
		}
		any = true
		q.reorder.put(g.BaseID+uint32(i), q.classify)
	}
	if any {
		q.feedback = append(q.feedback, ackFeedback{
			LastSendTimeMs: lastSend,
			TotalAckSize:   totalSize,
			RateLimited:    rateLimited,
		})
	}
}

// classify feeds one reorder-buffer verdict into the loss history.
func (q *frameQueue) classify(id uint32, acked bool) {
	if acked {
		q.loss.ack()
		return
	}
	sendTimeMs := int64(0)
	if e, ok := q.entries[id]; ok {
		sendTimeMs = e.sendTimeMs
	}
	q.loss.nack(sendTimeMs, q.lastRTT)
}

// advanceTransferWindow moves window_base to newBase if it falls strictly
// ahead of the current base and at or before log_next, retiring any log
// entries that fall out of the tail as implicit losses (spec.md §4.D).
func (q *frameQueue) advanceTransferWindow(newBase uint32, rtt time.Duration) {
	q.lastRTT = rtt
	if !q.hasWindow {
		q.windowBase = newBase
		q.hasWindow = true
		return
	}
	if newBase-q.windowBase == 0 || newBase-q.windowBase > q.logNext-q.windowBase {
		return // not in (window_base, log_next], sign-safe
	}
	q.windowBase = newBase
	q.drainBelow(tailFloor(q.windowBase, q.tailSize))
}

// forgetFrames drains log entries sent before threshMs as implicit
// losses, regardless of window position (spec.md §4.D).
func (q *frameQueue) forgetFrames(threshMs int64, rtt time.Duration) {
	q.lastRTT = rtt
	for q.logBase != q.logNext {
		e, ok := q.entries[q.logBase]
		if !ok || e.sendTimeMs >= threshMs {
			break
		}
		q.retire(q.logBase)
	}
}

// drainBelow retires every log entry below floor, feeding each as an
// implicit loss via the reorder buffer unless it was already acked.
func (q *frameQueue) drainBelow(floor uint32) {
	for q.logBase != floor && q.logBase != q.logNext {
		q.retire(q.logBase)
	}
}

func (q *frameQueue) retire(id uint32) {
	e, ok := q.entries[id]
	if ok && !e.acked {
		q.reorder.advance(id+1, q.classify)
	}
	delete(q.entries, id)
	if id == q.logBase {
		q.logBase++
	}
}

func tailFloor(windowBase uint32, tailSize int) uint32 {
	if uint32(tailSize) > windowBase {
		return 0
	}
	return windowBase - uint32(tailSize)
}
