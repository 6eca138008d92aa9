package rudp

// fragmentCount returns the number of MaxFragmentSize-sized fragments a
// packet of the given byte length is split into; every packet, even a
// zero-length one, occupies at least one fragment.
func fragmentCount(dataLen int) int {
	if dataLen == 0 {
		return 1
	}
	return (dataLen + MaxFragmentSize - 1) / MaxFragmentSize
}

// allocSize returns the allocation footprint a packet of the given byte
// length charges against the sender/receiver budget (spec.md §4.A
// invariants): the full fragment-rounded size for multi-fragment packets,
// the exact length otherwise.
func allocSize(dataLen int) int {
	n := fragmentCount(dataLen)
	if n > 1 {
		return n * MaxFragmentSize
	}
	return dataLen
}

// pendingPacket is the single strong owner of a submitted packet's bytes
// and per-fragment ack state. It lives in the sender's packet-window ring;
// the pending queue, resend queue, and frame log only ever reference it by
// (packetID, fragment index) pairs, which are revalidated against the
// ring slot's current occupant before use.
type pendingPacket struct {
	id        uint32
	channel   uint8
	mode      SendMode
	data      []byte
	acked     []bool
	ackedLeft int
	alloc     int

	// windowParentLead and channelParentLead are set once, immediately
	// after PacketSender.EmitPacket returns, and then carried unchanged
	// on every fragment's datagram header (they describe the packet, not
	// the fragment).
	windowParentLead  uint16
	channelParentLead uint16
}

func newPendingPacket(id uint32, channel uint8, mode SendMode, data []byte) *pendingPacket {
	n := fragmentCount(len(data))
	return &pendingPacket{
		id:        id,
		channel:   channel,
		mode:      mode,
		data:      data,
		acked:     make([]bool, n),
		ackedLeft: n,
		alloc:     allocSize(len(data)),
	}
}

func (p *pendingPacket) numFragments() int {
	return len(p.acked)
}

func (p *pendingPacket) lastFragmentID() uint16 {
	return uint16(p.numFragments() - 1)
}

// fragmentData returns the byte slice carried by fragment idx.
func (p *pendingPacket) fragmentData(idx int) []byte {
	begin := idx * MaxFragmentSize
	end := begin + MaxFragmentSize
	if end > len(p.data) {
		end = len(p.data)
	}
	return p.data[begin:end]
}

// ackFragment marks fragment idx acknowledged, reporting whether every
// fragment of the packet is now acknowledged.
func (p *pendingPacket) ackFragment(idx int) (fullyAcked bool) {
	if idx < 0 || idx >= len(p.acked) || p.acked[idx] {
		return p.ackedLeft == 0
	}
	p.acked[idx] = true
	p.ackedLeft--
	return p.ackedLeft == 0
}

// queuedPacket is a packet that has been submitted via Send but not yet
// assigned a sequence ID by the packet sender.
type queuedPacket struct {
	channel uint8
	mode    SendMode
	data    []byte
	flushID uint64
}
