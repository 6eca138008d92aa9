package rudp

// fragRef names one fragment of a packet somewhere in the send pipeline.
// It is a value, not a pointer, so it survives the owning pendingPacket
// being dropped by window advancement — consumers revalidate it against
// the sender's window ring before acting on it.
type fragRef struct {
	packetID uint32
	fragment int
}

// PacketSender turns submitted packets into ordered fragments, assigning
// per-packet sequence IDs and enforcing the packet transfer window and the
// allocation budget (spec.md §4.A).
type PacketSender struct {
	maxAlloc int

	queue []queuedPacket

	window   []*pendingPacket // ring of MaxPacketWindowSize slots
	baseID   uint32
	nextID   uint32

	channelParent    [ChannelCount]uint32
	channelHasParent [ChannelCount]bool
	senderParent     uint32
	senderHasParent  bool

	alloc int
}

// NewPacketSender constructs a sender with the given allocation budget in
// bytes.
func NewPacketSender(maxAlloc int) *PacketSender {
	return &PacketSender{
		maxAlloc: maxAlloc,
		window:   make([]*pendingPacket, MaxPacketWindowSize),
	}
}

// BaseID returns the sender's base_packet_id.
func (s *PacketSender) BaseID() uint32 { return s.baseID }

// NextID returns the sender's next_packet_id.
func (s *PacketSender) NextID() uint32 { return s.nextID }

// Alloc returns the sender's current allocation usage in bytes.
func (s *PacketSender) Alloc() int { return s.alloc }

// Enqueue appends a packet to the send queue. It panics if data exceeds
// MaxPacketSize or the sender's allocation budget, or if channel is out of
// range, matching spec.md §6's "panics on invalid channel or oversize
// packet".
func (s *PacketSender) Enqueue(data []byte, channel uint8, mode SendMode, flushID uint64) {
	if channel >= ChannelCount {
		panic("rudp: channel out of range")
	}
	if len(data) > MaxPacketSize {
		panic("rudp: packet exceeds MaxPacketSize")
	}
	if len(data) > s.maxAlloc {
		panic("rudp: packet exceeds allocation budget")
	}
	s.queue = append(s.queue, queuedPacket{
		channel: channel,
		mode:    mode,
		data:    data,
		flushID: flushID,
	})
}

// windowFull reports whether the packet transfer window has no free slot.
func (s *PacketSender) windowFull() bool {
	return s.nextID-s.baseID >= MaxPacketWindowSize
}

// EmittedPacket is the result of a successful PacketSender.EmitPacket
// call: a freshly sequenced pending packet plus the header fields its
// datagrams must carry.
type EmittedPacket struct {
	Packet            *pendingPacket
	WindowParentLead  uint16
	ChannelParentLead uint16
	Resend            bool
}

// EmitPacket drops any head-of-queue TimeSensitive packets whose flushID
// does not match the current tick, then assigns the next queued packet a
// sequence ID if it fits within both the packet window and the allocation
// budget. ok is false if no packet was emitted this call.
func (s *PacketSender) EmitPacket(flushID uint64) (emitted EmittedPacket, ok bool) {
	for len(s.queue) > 0 && s.queue[0].mode == TimeSensitive && s.queue[0].flushID != flushID {
		s.queue = s.queue[1:]
	}
	if len(s.queue) == 0 {
		return EmittedPacket{}, false
	}
	head := s.queue[0]
	size := allocSize(len(head.data))
	if s.windowFull() || s.alloc+size > s.maxAlloc {
		return EmittedPacket{}, false
	}
	s.queue = s.queue[1:]

	id := s.nextID
	windowLead := parentLead(id, s.senderHasParent, s.senderParent)
	var channelLead uint16
	if head.mode.setsChannelParent() {
		channelLead = parentLead(id, s.channelHasParent[head.channel], s.channelParent[head.channel])
	}

	pp := newPendingPacket(id, head.channel, head.mode, head.data)
	s.window[id%MaxPacketWindowSize] = pp
	s.alloc += size
	s.nextID++

	if head.mode.setsSenderParent() {
		s.senderParent = id
		s.senderHasParent = true
	}
	if head.mode.setsChannelParent() {
		s.channelParent[head.channel] = id
		s.channelHasParent[head.channel] = true
	}

	return EmittedPacket{
		Packet:            pp,
		WindowParentLead:  windowLead,
		ChannelParentLead: channelLead,
		Resend:            head.mode.resend(),
	}, true
}

// parentLead computes the parent_lead header field for packet id given the
// referenced parent pointer as it stood before id was assigned.
func parentLead(id uint32, hasParent bool, parentID uint32) uint16 {
	if !hasParent {
		return 0
	}
	lead := id - parentID
	if lead > 0xFFFF {
		lead = 0xFFFF
	}
	return uint16(lead)
}

// Lookup returns the pending packet occupying id's window slot, or nil if
// that slot is empty or now occupied by a different packet (the window
// has advanced and the slot was reused or cleared).
func (s *PacketSender) Lookup(id uint32) *pendingPacket {
	pp := s.window[id%MaxPacketWindowSize]
	if pp == nil || pp.id != id {
		return nil
	}
	return pp
}

// AckFragment marks fragment idx of packetID's pending packet acknowledged
// and releases the packet's allocation once every fragment is acked. It is
// a silent no-op if the packet is no longer in the window (stale
// reference from an expired frame-log entry).
func (s *PacketSender) AckFragment(packetID uint32, idx int) {
	pp := s.Lookup(packetID)
	if pp == nil {
		return
	}
	if pp.ackFragment(idx) {
		s.alloc -= pp.alloc
		s.window[packetID%MaxPacketWindowSize] = nil
	}
}

// Acknowledge advances the packet window to receiverBase, dropping every
// slot in [base_packet_id, receiverBase) and releasing their allocation.
// Any parent pointer landing inside the dropped range is cleared.
func (s *PacketSender) Acknowledge(receiverBase uint32) {
	for s.baseID != receiverBase {
		idx := s.baseID % MaxPacketWindowSize
		if pp := s.window[idx]; pp != nil && pp.id == s.baseID {
			s.alloc -= pp.alloc
			s.window[idx] = nil
		}
		if s.senderHasParent && s.senderParent == s.baseID {
			s.senderHasParent = false
		}
		for c := uint8(0); c < ChannelCount; c++ {
			if s.channelHasParent[c] && s.channelParent[c] == s.baseID {
				s.channelHasParent[c] = false
			}
		}
		s.baseID++
	}
}

// SendBufferSize reports the sender's current allocation usage, i.e. the
// sum of not-yet-fully-acknowledged pending packet byte sizes (spec.md §6
// send_buffer_size, see SPEC_FULL.md item 2).
func (s *PacketSender) SendBufferSize() int {
	return s.alloc
}
