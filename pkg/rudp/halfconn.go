package rudp

import (
	"math"
	"time"
)

// frameBaseTracker tracks the contiguous run of frame sequence IDs
// received from the peer, giving the frame emitter the "receiver
// frame-window base ID" every Ack frame must carry (spec.md §4.F). It has
// no teacher analog; RakNet has no frame-sequence concept distinct from
// its message-index/split-packet IDs.
type frameBaseTracker struct {
	base    uint32
	hasBase bool
	seen    map[uint32]bool
}

func (t *frameBaseTracker) mark(id uint32) {
	if !t.hasBase {
		t.base = id
		t.hasBase = true
	}
	if t.seen == nil {
		t.seen = make(map[uint32]bool)
	}
	t.seen[id] = true
	for t.seen[t.base] {
		delete(t.seen, t.base)
		t.base++
	}
}

// resync skips the tracker's base forward to next on receipt of a Sync
// frame, discarding any gaps that can now never be filled, mirroring
// PacketReceiver.Resynchronize's purpose for the packet window.
func (t *frameBaseTracker) resync(next uint32) {
	if !t.hasBase {
		t.base = next
		t.hasBase = true
		return
	}
	if next-t.base != 0 && next-t.base < 1<<31 {
		t.base = next
		t.seen = nil
	}
}

// HalfConnection is the single-threaded, non-blocking core described by
// spec.md §5: it owns every §4 component for one peer and exposes the
// §6 Application API. It performs no I/O itself — HandleFrame accepts
// already-received bytes, and Flush hands finished frame bytes to the
// FrameSink supplied at construction.
type HalfConnection struct {
	config Config

	sender   *PacketSender
	receiver *PacketReceiver

	pendingQueue *pendingQueue
	resendQueue  *resendQueue

	frameQueue *frameQueue
	ackQueue   *frameAckQueue
	reorder    *reorderBuffer
	loss       *lossHistory
	congestion *congestionController

	emitter *Emitter
	sink    FrameSink

	rxFrames frameBaseTracker

	tickID uint64

	connectSent      bool
	disconnectSent   bool
	draining         bool
	syncJustReceived bool

	lastUsableMs int64
	timedOut     bool
}

// NewHalfConnection constructs a half connection already in the "active"
// state (spec.md §6 treats handshake promotion as the host collaborator's
// job, not this type's). sink receives every frame this connection emits.
func NewHalfConnection(config Config, nowMs int64, sink FrameSink) *HalfConnection {
	sender := NewPacketSender(config.MaxSendAlloc)
	receiver := NewPacketReceiver(config.MaxReceiveAlloc)
	reorder := newReorderBuffer(2 * MaxFrameWindowSize)
	loss := newLossHistory()
	fq := newFrameQueue(sender, reorder, loss, MaxFrameWindowSize, FrameLogTailSize)
	ackQueue := newFrameAckQueue()
	congestion := newCongestionController(float64(config.MaxReceiveRate), loss)
	pendingQ := &pendingQueue{}
	resendQ := newResendQueue()
	emitter := NewEmitter(sender, pendingQ, resendQ, fq, ackQueue, congestion, config.Keepalive)

	return &HalfConnection{
		config:       config,
		sender:       sender,
		receiver:     receiver,
		pendingQueue: pendingQ,
		resendQueue:  resendQ,
		frameQueue:   fq,
		ackQueue:     ackQueue,
		reorder:      reorder,
		loss:         loss,
		congestion:   congestion,
		emitter:      emitter,
		sink:         sink,
		lastUsableMs: nowMs,
	}
}

// Send enqueues data for eventual transmission on channel under mode. It
// panics on an invalid channel or an oversize packet (spec.md §6).
func (h *HalfConnection) Send(data []byte, channel uint8, mode SendMode) {
	h.sender.Enqueue(data, channel, mode, h.tickID)
}

// HandleFrame presents one received, still-encoded frame to the
// connection at the given wall-clock time. A malformed frame (bad CRC,
// truncated body) is silently dropped per spec.md §7.
func (h *HalfConnection) HandleFrame(data []byte, nowMs int64) {
	typ, body, err := DecodeFrameType(data)
	if err != nil {
		return
	}
	switch typ {
	case FrameData:
		f, err := DecodeDataFrame(body)
		if err != nil {
			return
		}
		h.handleDataFrame(f)
	case FrameAck:
		f, err := DecodeAckFrame(body)
		if err != nil {
			return
		}
		h.handleAckFrame(f)
	case FrameSync:
		f, err := DecodeSyncFrame(body)
		if err != nil {
			return
		}
		h.handleSyncFrame(f)
	default:
		// Handshake/Disconnect/InfoRequest frames belong to the host
		// state machine collaborator (spec.md §6); this type never sees
		// them in practice, but ignores them defensively if it does.
		return
	}
	h.noteUsableFrame(nowMs)
}

func (h *HalfConnection) handleDataFrame(f DataFrame) {
	h.ackQueue.markReceived(f.SequenceID, f.Nonce)
	h.rxFrames.mark(f.SequenceID)
	for _, d := range f.Datagrams {
		h.receiver.HandleDatagram(d)
	}
}

func (h *HalfConnection) handleAckFrame(f AckFrame) {
	rtt := h.emitter.rtt()
	h.frameQueue.advanceTransferWindow(f.FrameWindowBase, rtt)
	h.sender.Acknowledge(f.PacketWindowBase)
	for _, g := range f.Groups {
		h.frameQueue.acknowledgeGroup(g, rtt)
	}
}

func (h *HalfConnection) handleSyncFrame(f SyncFrame) {
	if f.HasNextPacketID {
		h.receiver.Resynchronize(f.NextPacketID)
	}
	if f.HasNextFrameID {
		h.rxFrames.resync(f.NextFrameID)
	}
	h.syncJustReceived = true
}

// noteUsableFrame resets the watchdog clock: any well-formed inbound
// frame, not just ones carrying data, counts as proof of life (spec.md
// §5).
func (h *HalfConnection) noteUsableFrame(nowMs int64) {
	h.lastUsableMs = nowMs
	h.timedOut = false
}

// Step advances the connection by one tick, running delivery, congestion
// control, and the watchdog, and returns every event the application
// should observe (spec.md §6 "step() returns the event iterator").
// Exactly one Step call should precede each tick's Send calls and the
// matching Flush call, since flush_id (used to cancel stale TimeSensitive
// packets) advances here.
func (h *HalfConnection) Step(nowMs int64) []Event {
	var events []Event

	if !h.connectSent {
		events = append(events, Event{Type: EventConnect})
		h.connectSent = true
	}

	for _, p := range h.receiver.Deliver() {
		events = append(events, Event{Type: EventReceive, Channel: p.Channel, Data: p.Data})
	}

	h.congestion.Step(nowMs, h.frameQueue)

	if !h.timedOut && nowMs-h.lastUsableMs >= h.config.WatchdogTimeout.Milliseconds() {
		h.timedOut = true
		events = append(events, Event{Type: EventError, Kind: ErrorTimeout})
	}

	if h.draining && h.pendingQueue.empty() && h.resendQueue.empty() && !h.disconnectSent {
		events = append(events, Event{Type: EventDisconnect})
		h.disconnectSent = true
	}

	h.tickID++
	return events
}

// Flush synchronously drains the emit budget for this tick (spec.md §6
// "flush() synchronously drains the emit budget").
func (h *HalfConnection) Flush(nowMs int64, elapsed time.Duration) {
	rtt := h.emitter.rtt()
	h.emitter.Replenish(elapsed, rtt)
	h.emitter.Flush(nowMs, h.tickID, h.syncJustReceived, h.rxFrames.base, h.receiver.BaseID(), h.sink)
	h.syncJustReceived = false
}

// Disconnect requests a flush-then-teardown (spec.md §5, SPEC_FULL.md
// supplemented feature 6): it drains the flush allocation unboundedly
// once, so any already-buffered Reliable sends are not silently dropped
// by a disconnect requested in the same tick they were enqueued, then
// marks the connection draining. Step begins reporting EventDisconnect
// once every locally-queued fragment has been handed off.
func (h *HalfConnection) Disconnect(nowMs int64) {
	if h.draining {
		return
	}
	h.emitter.flushAlloc = math.MaxFloat64 / 2
	h.emitter.Flush(nowMs, h.tickID, h.syncJustReceived, h.rxFrames.base, h.receiver.BaseID(), h.sink)
	h.syncJustReceived = false
	h.draining = true
}

// RTTSeconds returns the RTT estimate, or false if no feedback has ever
// been processed (spec.md §6 rtt_s, SPEC_FULL.md supplemented feature 1).
func (h *HalfConnection) RTTSeconds() (float64, bool) {
	return h.congestion.RTTSeconds()
}

// SendBufferSize reports the sender's current allocation usage (spec.md
// §6 send_buffer_size).
func (h *HalfConnection) SendBufferSize() int {
	return h.sender.SendBufferSize()
}
