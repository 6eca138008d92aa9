// Package rudp implements a connection-oriented reliable/semi-reliable
// datagram transport on top of an unreliable unicast packet service
// (conceptually UDP). See doc.go for an overview of the moving parts.
package rudp

import "time"

// Wire-level limits and window sizes. These mirror the constants a real
// endpoint negotiates during the (out-of-scope) handshake; the half
// connection is constructed with a Config carrying the agreed values, but
// these are the defaults used throughout the package and its tests.
const (
	// UDPHeaderSize is the conservative IPv4/UDP header overhead budgeted
	// against the host's reported MTU to arrive at MaxFrameSize.
	UDPHeaderSize = 28

	// MaxFrameSize is the largest number of bytes emitted in a single call
	// to the socket sink, chosen so a 1500-byte-MTU path never fragments
	// at IP level.
	MaxFrameSize = 1472

	// MaxFragmentSize is the largest number of payload bytes carried by a
	// single datagram within a frame, sized so one maximally-sized
	// multi-fragment datagram exactly fills a frame: MaxFrameSize(1472) -
	// dataFrameFixedSize(12) - per-datagram header(15, multi-fragment
	// case) = 1445. See spec.md §8 scenario S2, which requires a
	// 2*MAX_FRAGMENT_SIZE payload to produce exactly two frames each of
	// size MAX_FRAME_SIZE.
	MaxFragmentSize = 1445

	// MaxFragments bounds how many fragments a single packet may be split
	// into; enforced at PacketSender.Enqueue.
	MaxFragments = 256

	// MaxPacketSize is the largest application packet accepted by Send.
	MaxPacketSize = MaxFragmentSize * MaxFragments

	// ChannelCount is the number of independent ordering channels.
	ChannelCount = 8

	// MaxPacketWindowSize bounds the span between base_packet_id and
	// next_packet_id at the sender, and the receive window at the
	// receiver. Packet IDs are plain uint32 counters; they are not reduced
	// modulo PacketIDSpan.
	MaxPacketWindowSize = 4096

	// MaxFrameWindowSize bounds the span of outstanding frame log entries.
	// Frame IDs are 32-bit and wrap modulo FrameIDSpan.
	MaxFrameWindowSize = 1024

	// FrameLogTailSize is the number of frame-log entries retained beyond
	// window_base to absorb late acks arriving just after a window
	// advance (see SPEC_FULL.md "Frame-log tail retention").
	FrameLogTailSize = MaxFrameWindowSize

	// MaxDatagramsPerFrame bounds how many datagrams may be bundled into
	// one frame. Chosen so MaxDatagramsPerFrame*2*MaxFrameWindowSize <=
	// PacketIDSpan, guaranteeing no two outstanding datagrams in the
	// receiver's frame window can ever collide on packet sequence ID.
	MaxDatagramsPerFrame = 64

	// MaxSendCount bounds the number of retransmits a Persistent/Reliable
	// fragment gets after its initial send; spec.md §7's retry policy caps
	// total physical sends at MaxSendCount+1=3 (initial send plus two
	// retransmits, the first one RTT after the initial send and the second
	// one RTT after the first).
	MaxSendCount = 2

	// PacketIDSpan is the modulus of the 24-bit packet sequence space.
	PacketIDSpan = 1 << 24

	// FrameIDSpan is the modulus of the 32-bit frame sequence space.
	FrameIDSpan = 1 << 32

	// DisconnectInterval is how often the host-level Disconnect frame is
	// retransmitted until DisconnectAck or watchdog (owned by the host
	// collaborator, not this package, but exposed for that collaborator).
	DisconnectInterval = 500 * time.Millisecond

	// WatchdogTimeout is how long a half connection tolerates receiving
	// no usable inbound frame before the host should surface a Timeout
	// error and tear the connection down.
	WatchdogTimeout = 20 * time.Second

	// MinSyncTimeoutMs is the floor on the Sync-frame emission interval
	// (see Emitter.emitSync).
	MinSyncTimeoutMs = 2000

	// MinSyncKeepaliveTimeoutMs is the floor on the keepalive Sync
	// interval when no other unacknowledged sender state exists.
	MinSyncKeepaliveTimeoutMs = 5000
)
