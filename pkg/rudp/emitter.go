package rudp

import (
	"math"
	"math/rand"
	"time"
)

// FrameSink receives one finalized, CRC-trailed frame's bytes, ready to
// hand to the socket adapter (spec.md §4.F).
type FrameSink func(frame []byte)

// emitStatus reports why an emission stage stopped before exhausting its
// queues (spec.md §4.F).
type emitStatus uint8

const (
	emitOK emitStatus = iota
	emitSizeLimited
	emitWindowLimited
)

// Emitter drains the ack, data, and sync frame-production stages in that
// fixed priority order against a per-tick flush allocation (spec.md
// §4.F Frame Emitter).
type Emitter struct {
	sender     *PacketSender
	pendingQ   *pendingQueue
	resendQ    *resendQueue
	frameQ     *frameQueue
	ackQ       *frameAckQueue
	congestion *congestionController

	flushAlloc float64 // bytes; may go negative, suppressing further sends

	lastSyncMs int64
	keepalive  bool

	// nonceSource supplies each outgoing frame's random 1-bit nonce.
	// Injected (rather than calling math/rand directly) so tests can
	// drive deterministic nonce sequences; defaults to math/rand, the
	// same PRNG source SPEC_FULL.md's DOMAIN STACK justifies for this use
	// (no pack example vendors a CSPRNG, and nonce bits need only differ
	// from guessable, not be cryptographically unpredictable).
	nonceSource func() byte
}

// NewEmitter constructs an Emitter over one half-connection's outgoing
// pipeline. keepalive enables the keepalive Sync cadence (SPEC_FULL.md
// supplemented feature 3).
func NewEmitter(sender *PacketSender, pendingQ *pendingQueue, resendQ *resendQueue, frameQ *frameQueue, ackQ *frameAckQueue, congestion *congestionController, keepalive bool) *Emitter {
	return &Emitter{
		sender:      sender,
		pendingQ:    pendingQ,
		resendQ:     resendQ,
		frameQ:      frameQ,
		ackQ:        ackQ,
		congestion:  congestion,
		keepalive:   keepalive,
		nonceSource: func() byte { return byte(rand.Intn(2)) },
	}
}

// Replenish grows the flush allocation by the send rate times elapsed
// time, clamped to a burst cap of send_rate*rtt (spec.md §4.F).
func (e *Emitter) Replenish(elapsed, rtt time.Duration) {
	rate := e.congestion.SendRate()
	e.flushAlloc += rate * elapsed.Seconds()
	if cap := rate * rtt.Seconds(); e.flushAlloc > cap {
		e.flushAlloc = cap
	}
}

// Flush drains Ack, then Data, then Sync, in that fixed order. A
// SizeLimited stage ends the whole flush; a WindowLimited one only ends
// its own stage (spec.md §4.F).
func (e *Emitter) Flush(nowMs int64, flushID uint64, syncJustReceived bool, rxFrameWindowBase, rxPacketWindowBase uint32, sink FrameSink) {
	if e.emitAck(syncJustReceived, rxFrameWindowBase, rxPacketWindowBase, sink) == emitSizeLimited {
		return
	}
	if e.emitData(nowMs, flushID, sink) == emitSizeLimited {
		return
	}
	e.emitSync(nowMs, sink)
}

// emitAck pushes one dud ack frame if a sync was just received; otherwise
// drains the receiver's frame-ack queue into AckGroup records, packed
// ackGroupWireSize-per-entry into frames under MaxFrameSize.
func (e *Emitter) emitAck(syncJustReceived bool, frameBase, packetBase uint32, sink FrameSink) emitStatus {
	if syncJustReceived {
		return e.sendAckFrame(nil, frameBase, packetBase, sink)
	}
	if e.ackQ.empty() {
		return emitOK
	}
	groups := e.ackQ.drain()
	const fixed = 1 + 4 + 4 + 2 + 4 // type + framebase + packetbase + count + crc
	maxGroups := (MaxFrameSize - fixed) / ackGroupWireSize
	for len(groups) > 0 {
		n := len(groups)
		if n > maxGroups {
			n = maxGroups
		}
		if status := e.sendAckFrame(groups[:n], frameBase, packetBase, sink); status != emitOK {
			return status
		}
		groups = groups[n:]
	}
	return emitOK
}

func (e *Emitter) sendAckFrame(groups []AckGroup, frameBase, packetBase uint32, sink FrameSink) emitStatus {
	buf := EncodeAckFrame(AckFrame{FrameWindowBase: frameBase, PacketWindowBase: packetBase, Groups: groups})
	if float64(len(buf)) > e.flushAlloc {
		return emitSizeLimited
	}
	sink(buf)
	e.flushAlloc -= float64(len(buf))
	return emitOK
}

const dataFrameFixedSize = 1 + 4 + 1 + 2 + 4 // type + seq + nonce + count + crc

func datagramWireSize(d Datagram) int {
	size := 1 + 4 + 2 + 2 + 2 + len(d.Data)
	if d.multiFragment() {
		size += 4
	}
	return size
}

func datagramFor(pp *pendingPacket, fragment int) Datagram {
	d := Datagram{
		SequenceID:        pp.id,
		Channel:           pp.channel,
		WindowParentLead:  pp.windowParentLead,
		ChannelParentLead: pp.channelParentLead,
		Data:              pp.fragmentData(fragment),
	}
	if pp.numFragments() > 1 {
		d.LastFragmentID = pp.lastFragmentID()
		d.FragmentID = uint16(fragment)
	}
	return d
}

// emitData drains the resend queue, then the pending queue (refilling it
// from the packet sender as needed), bundling datagrams into frames of at
// most MaxDatagramsPerFrame under MaxFrameSize (spec.md §4.F Data frame
// emitter).
func (e *Emitter) emitData(nowMs int64, flushID uint64, sink FrameSink) emitStatus {
	var cur []Datagram
	var curRefs []fragRef
	var curSize int

	flushCurrent := func() emitStatus {
		if len(cur) == 0 {
			return emitOK
		}
		if !e.frameQ.canPush() {
			return emitWindowLimited
		}
		nonce := e.nonceSource()
		frameLen := dataFrameFixedSize + curSize
		id := e.frameQ.push(frameLen, nowMs, curRefs, nonce)
		buf := EncodeDataFrame(DataFrame{SequenceID: id, Nonce: nonce, Datagrams: cur})
		sink(buf)
		e.flushAlloc -= float64(len(buf))
		e.congestion.NotifyFrameSent(nowMs)
		cur, curRefs, curSize = nil, nil, 0
		return emitOK
	}

	const maxDatagramSize = MaxFrameSize - dataFrameFixedSize

	tryAdd := func(d Datagram, ref fragRef, resend bool) emitStatus {
		dsize := datagramWireSize(d)
		if curSize+dsize > maxDatagramSize || len(cur) >= MaxDatagramsPerFrame {
			if status := flushCurrent(); status != emitOK {
				return status
			}
		}
		if dsize > maxDatagramSize {
			// MaxFragmentSize is sized to keep every datagram within a
			// frame's capacity (see constants.go), so this is unreachable
			// in practice; guards a misconfigured Config rather than
			// silently emitting an over-MTU frame.
			return emitSizeLimited
		}
		if float64(dataFrameFixedSize+curSize+dsize) > e.flushAlloc {
			return emitSizeLimited
		}
		cur = append(cur, d)
		curSize += dsize
		if resend {
			curRefs = append(curRefs, ref)
		}
		return emitOK
	}

	now := time.UnixMilli(nowMs)
	rtt := e.rtt()

	for {
		entry, ok := e.resendQ.peekDue(now)
		if !ok {
			break
		}
		pp := e.sender.Lookup(entry.ref.packetID)
		if pp == nil || pp.acked[entry.ref.fragment] {
			e.resendQ.popDue(now)
			continue
		}
		status := tryAdd(datagramFor(pp, entry.ref.fragment), entry.ref, true)
		if status != emitOK {
			flushCurrent()
			return status
		}
		e.resendQ.popDue(now)
		e.resendQ.pushRetransmit(entry.ref, now, rtt, entry.sendCount)
	}

	for {
		entry, ok := e.pendingQ.front()
		if !ok {
			if !e.refillPending(flushID) {
				break
			}
			continue
		}
		pp := e.sender.Lookup(entry.ref.packetID)
		if pp == nil {
			e.pendingQ.pop()
			continue
		}
		status := tryAdd(datagramFor(pp, entry.ref.fragment), entry.ref, entry.resend)
		if status != emitOK {
			flushCurrent()
			return status
		}
		e.pendingQ.pop()
		if entry.resend {
			e.resendQ.pushInitial(entry.ref, now, rtt)
		}
	}

	return flushCurrent()
}

// refillPending pulls the next packet off the sender's submission queue
// and fans its fragments into the pending queue.
func (e *Emitter) refillPending(flushID uint64) bool {
	emitted, ok := e.sender.EmitPacket(flushID)
	if !ok {
		return false
	}
	pp := emitted.Packet
	pp.windowParentLead = emitted.WindowParentLead
	pp.channelParentLead = emitted.ChannelParentLead
	for i := 0; i < pp.numFragments(); i++ {
		e.pendingQ.push(fragRef{packetID: pp.id, fragment: i}, emitted.Resend)
	}
	return true
}

// emitSync sends a Sync frame once elapsed_since_last_sync clears
// max(rto_ms, MinSyncTimeoutMs) and either unacknowledged sender state
// exists or the keepalive cadence is due (spec.md §4.F Sync frame
// emitter).
func (e *Emitter) emitSync(nowMs int64, sink FrameSink) {
	elapsed := nowMs - e.lastSyncMs
	timeout := int64(math.Max(float64(e.congestion.rtoMs), MinSyncTimeoutMs))
	if elapsed < timeout {
		return
	}

	frameWindowNonEmpty := e.frameQ.logNext != e.frameQ.windowBase
	packetWindowNonEmpty := e.sender.NextID() != e.sender.BaseID()
	localQueueEmpty := e.pendingQ.empty() && e.resendQ.empty()
	unacked := frameWindowNonEmpty || (packetWindowNonEmpty && localQueueEmpty)
	keepaliveDue := e.keepalive && elapsed >= MinSyncKeepaliveTimeoutMs
	if !unacked && !keepaliveDue {
		return
	}

	var f SyncFrame
	if frameWindowNonEmpty {
		f.HasNextFrameID = true
		f.NextFrameID = e.frameQ.logNext
	}
	if packetWindowNonEmpty {
		f.HasNextPacketID = true
		f.NextPacketID = e.sender.NextID()
	}
	buf := EncodeSyncFrame(f)
	if float64(len(buf)) > e.flushAlloc {
		return
	}
	sink(buf)
	e.flushAlloc -= float64(len(buf))
	e.lastSyncMs = nowMs
}

// rtt returns the best current RTT estimate, or a conservative startup
// guess before the congestion controller has ever seen feedback.
func (e *Emitter) rtt() time.Duration {
	if s, ok := e.congestion.RTTSeconds(); ok {
		return time.Duration(s * float64(time.Second))
	}
	return 100 * time.Millisecond
}
