package rudp

import "testing"

func TestPacketSenderEnqueuePanicsOnBadChannel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range channel")
		}
	}()
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("x"), ChannelCount, Reliable, 0)
}

func TestPacketSenderEnqueuePanicsOnOversizePacket(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for oversize packet")
		}
	}()
	s := NewPacketSender(1 << 20)
	s.Enqueue(make([]byte, MaxPacketSize+1), 0, Reliable, 0)
}

func TestPacketSenderEmitAssignsSequentialIDs(t *testing.T) {
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("a"), 0, Reliable, 0)
	s.Enqueue([]byte("b"), 0, Reliable, 0)

	e1, ok := s.EmitPacket(0)
	if !ok || e1.Packet.id != 0 {
		t.Fatalf("first emit: ok=%v id=%d", ok, e1.Packet.id)
	}
	e2, ok := s.EmitPacket(0)
	if !ok || e2.Packet.id != 1 {
		t.Fatalf("second emit: ok=%v id=%d", ok, e2.Packet.id)
	}
	if _, ok := s.EmitPacket(0); ok {
		t.Fatal("expected no third packet to emit")
	}
}

func TestPacketSenderTimeSensitiveDroppedNextTick(t *testing.T) {
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("stale"), 0, TimeSensitive, 0)
	s.Enqueue([]byte("fresh"), 0, TimeSensitive, 1)

	e, ok := s.EmitPacket(1)
	if !ok {
		t.Fatal("expected the fresh TimeSensitive packet to emit")
	}
	if string(e.Packet.data) != "fresh" {
		t.Fatalf("got packet %q, want %q (stale one should have been dropped)", e.Packet.data, "fresh")
	}
}

func TestPacketSenderReliableParentLead(t *testing.T) {
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("a"), 0, Reliable, 0)
	s.Enqueue([]byte("b"), 0, Reliable, 0)

	e1, _ := s.EmitPacket(0)
	if e1.WindowParentLead != 0 {
		t.Fatalf("first Reliable packet should have no sender parent, got lead %d", e1.WindowParentLead)
	}
	e2, _ := s.EmitPacket(0)
	if e2.WindowParentLead != 1 {
		t.Fatalf("second Reliable packet's window parent lead = %d, want 1", e2.WindowParentLead)
	}
}

func TestPacketSenderUnreliableNeverSetsParent(t *testing.T) {
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("a"), 0, Reliable, 0)
	s.Enqueue([]byte("b"), 0, Unreliable, 0)
	s.EmitPacket(0) // Reliable, becomes sender parent
	e2, _ := s.EmitPacket(0)
	if e2.ChannelParentLead != 0 {
		t.Fatalf("Unreliable packet should never inherit a channel parent lead, got %d", e2.ChannelParentLead)
	}
}

func TestPacketSenderAcknowledgeReleasesAlloc(t *testing.T) {
	s := NewPacketSender(1 << 20)
	s.Enqueue([]byte("abc"), 0, Reliable, 0)
	s.EmitPacket(0)
	if s.Alloc() == 0 {
		t.Fatal("expected non-zero alloc after emit")
	}
	s.Acknowledge(1)
	if s.Alloc() != 0 {
		t.Fatalf("Alloc() = %d after acknowledging the only packet, want 0", s.Alloc())
	}
	if s.BaseID() != 1 {
		t.Fatalf("BaseID() = %d, want 1", s.BaseID())
	}
}

func TestPacketSenderAckFragmentReleasesOnLastFragment(t *testing.T) {
	s := NewPacketSender(1 << 20)
	data := make([]byte, MaxFragmentSize+10) // two fragments
	s.Enqueue(data, 0, Reliable, 0)
	e, _ := s.EmitPacket(0)
	if e.Packet.numFragments() != 2 {
		t.Fatalf("numFragments() = %d, want 2", e.Packet.numFragments())
	}
	s.AckFragment(e.Packet.id, 0)
	if s.Lookup(e.Packet.id) == nil {
		t.Fatal("packet should still be present after only one of two fragments acked")
	}
	s.AckFragment(e.Packet.id, 1)
	if s.Lookup(e.Packet.id) != nil {
		t.Fatal("packet should be released once every fragment is acked")
	}
	if s.Alloc() != 0 {
		t.Fatalf("Alloc() = %d, want 0", s.Alloc())
	}
}

func TestPacketSenderWindowFull(t *testing.T) {
	s := NewPacketSender(1 << 30)
	for i := 0; i < MaxPacketWindowSize; i++ {
		s.Enqueue([]byte{byte(i)}, 0, Unreliable, 0)
	}
	s.Enqueue([]byte("overflow"), 0, Unreliable, 0)
	for i := 0; i < MaxPacketWindowSize; i++ {
		if _, ok := s.EmitPacket(0); !ok {
			t.Fatalf("expected packet %d to emit before the window filled", i)
		}
	}
	if _, ok := s.EmitPacket(0); ok {
		t.Fatal("expected the window to be full")
	}
}
