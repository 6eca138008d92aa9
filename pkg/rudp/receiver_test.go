package rudp

import "testing"

func singleFragmentDatagram(seq uint32, channel uint8, data []byte) Datagram {
	return Datagram{SequenceID: seq, Channel: channel, Data: data}
}

func TestPacketReceiverSingleFragmentDelivery(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("hello")))

	got := r.Deliver()
	if len(got) != 1 || string(got[0].Data) != "hello" {
		t.Fatalf("Deliver() = %+v, want one packet with data %q", got, "hello")
	}
	if r.BaseID() != 1 {
		t.Fatalf("BaseID() = %d, want 1", r.BaseID())
	}
}

func TestPacketReceiverFragmentReassembly(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	part0 := make([]byte, MaxFragmentSize)
	for i := range part0 {
		part0[i] = 'a'
	}
	part1 := []byte("tail")

	r.HandleDatagram(Datagram{SequenceID: 0, Channel: 0, LastFragmentID: 1, FragmentID: 1, Data: part1})
	r.HandleDatagram(Datagram{SequenceID: 0, Channel: 0, LastFragmentID: 1, FragmentID: 0, Data: part0})

	got := r.Deliver()
	if len(got) != 1 {
		t.Fatalf("Deliver() returned %d packets, want 1", len(got))
	}
	want := append(append([]byte{}, part0...), part1...)
	if string(got[0].Data) != string(want) {
		t.Fatalf("reassembled %d bytes, want %d", len(got[0].Data), len(want))
	}
}

func TestPacketReceiverOutOfOrderChannelDelivery(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	// Packet 1 arrives before packet 0 on the same channel; channel parent
	// lead 0 means neither depends on the other (spec.md §8 S3).
	r.HandleDatagram(singleFragmentDatagram(1, 0, []byte("second")))
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("first")))

	got := r.Deliver()
	if len(got) != 2 {
		t.Fatalf("Deliver() returned %d packets, want 2", len(got))
	}
	if string(got[0].Data) != "first" || string(got[1].Data) != "second" {
		t.Fatalf("delivery order = %q, %q; want ascending sequence order", got[0].Data, got[1].Data)
	}
}

func TestPacketReceiverChannelParentLeadBlocks(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	// Packet 1 depends on packet 0 (lead 1) on the same channel; packet 1's
	// datagram arrives first and must not deliver before packet 0 does.
	r.HandleDatagram(Datagram{SequenceID: 1, Channel: 0, ChannelParentLead: 1, Data: []byte("dependent")})
	if got := r.Deliver(); len(got) != 0 {
		t.Fatalf("Deliver() = %+v before the parent arrived, want none", got)
	}
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("parent")))
	got := r.Deliver()
	if len(got) != 2 {
		t.Fatalf("Deliver() returned %d packets, want 2 once the parent arrived", len(got))
	}
	if string(got[0].Data) != "parent" || string(got[1].Data) != "dependent" {
		t.Fatalf("delivery order = %q, %q", got[0].Data, got[1].Data)
	}
}

func TestPacketReceiverDuplicateDatagramIgnored(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("first")))
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("duplicate")))
	got := r.Deliver()
	if len(got) != 1 || string(got[0].Data) != "first" {
		t.Fatalf("got %+v, want exactly one delivery of the first datagram", got)
	}
}

func TestPacketReceiverOutsideWindowDropped(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	r.HandleDatagram(singleFragmentDatagram(MaxPacketWindowSize, 0, []byte("too far ahead")))
	if got := r.Deliver(); len(got) != 0 {
		t.Fatalf("got %+v, want the out-of-window datagram dropped", got)
	}
}

func TestPacketReceiverResynchronizeSkipsHoles(t *testing.T) {
	r := NewPacketReceiver(1 << 20)
	r.HandleDatagram(singleFragmentDatagram(0, 0, []byte("only this one arrives")))
	r.Deliver() // packet 0 is delivered, so the window base moves to 1
	// sender has moved on to packet 10 without packets 1..9 ever arriving
	r.Resynchronize(10)
	if r.BaseID() != 10 {
		t.Fatalf("BaseID() = %d after Resynchronize(10), want 10", r.BaseID())
	}
	if r.EndID() != 10 {
		t.Fatalf("EndID() = %d after Resynchronize(10), want 10", r.EndID())
	}
}

func TestPacketReceiverAllocationBudgetDud(t *testing.T) {
	r := NewPacketReceiver(10) // tiny budget
	r.HandleDatagram(Datagram{SequenceID: 0, Channel: 0, LastFragmentID: 1, FragmentID: 0, Data: make([]byte, 5)})
	got := r.Deliver()
	if len(got) != 0 {
		t.Fatalf("an over-budget packet should never surface a Receive event, got %+v", got)
	}
	if r.Alloc() != 0 {
		t.Fatalf("Alloc() = %d after a dud packet swept out, want 0", r.Alloc())
	}
}
