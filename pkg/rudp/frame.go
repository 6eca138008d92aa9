package rudp

// FrameType identifies the wire frame kind. Type bytes are assigned
// sequentially (spec.md §3); only Data, Sync, and Ack are ever exchanged by
// an active half connection — the rest belong to the host collaborator's
// handshake/teardown state machine and are named here only so the full
// wire vocabulary lives in one place.
type FrameType byte

const (
	FrameHandshakeSyn FrameType = iota
	FrameHandshakeSynAck
	FrameHandshakeAck
	FrameHandshakeError
	FrameDisconnect
	FrameDisconnectAck
	FrameData
	FrameSync
	FrameAck
	FrameInfoRequest
	FrameInfoReply
)

// Datagram is the on-wire unit carrying one packet fragment (spec.md §3).
type Datagram struct {
	SequenceID        uint32
	Channel           uint8
	WindowParentLead  uint16
	ChannelParentLead uint16
	FragmentID        uint16
	LastFragmentID    uint16
	Data              []byte
}

func (d Datagram) multiFragment() bool { return d.LastFragmentID != 0 }

// AckGroup is one fixed-width 9-byte selective-ack record: a base frame
// ID, a 32-bit bitfield of frames received relative to that base, and the
// XOR of their nonces (spec.md §4.D, §4.G).
type AckGroup struct {
	BaseID   uint32
	Bitfield uint32
	Nonce    byte // 0 or 1
}

// DataFrame bundles datagrams under one frame sequence ID and nonce
// (spec.md §3, §6).
type DataFrame struct {
	SequenceID uint32
	Nonce      byte
	Datagrams  []Datagram
}

// AckFrame carries selective-ack groups plus the sender's current receive
// window bases, letting the peer advance its packet/frame windows without
// a dedicated Sync (spec.md §4.F, §6).
type AckFrame struct {
	FrameWindowBase  uint32
	PacketWindowBase uint32
	Groups           []AckGroup
}

// SyncFrame conveys "here is where I am" without requiring a full ack
// (spec.md §4.F). NextFrameID/NextPacketID are present only when the
// corresponding window is in use.
type SyncFrame struct {
	HasNextFrameID  bool
	NextFrameID     uint32
	HasNextPacketID bool
	NextPacketID    uint32
}
