package rudp

import (
	"testing"
	"time"
)

func TestHalfConnectionFirstStepReportsConnect(t *testing.T) {
	h := NewHalfConnection(DefaultConfig(), 0, func([]byte) {})
	events := h.Step(0)
	if len(events) == 0 || events[0].Type != EventConnect {
		t.Fatalf("first Step() events = %+v, want EventConnect first", events)
	}
	if events2 := h.Step(1); len(events2) > 0 && events2[0].Type == EventConnect {
		t.Fatal("EventConnect should only be reported once")
	}
}

func TestHalfConnectionReliableLoopbackDelivery(t *testing.T) {
	cfg := DefaultConfig()
	var aOut, bOut [][]byte
	a := NewHalfConnection(cfg, 0, func(f []byte) { aOut = append(aOut, append([]byte{}, f...)) })
	b := NewHalfConnection(cfg, 0, func(f []byte) { bOut = append(bOut, append([]byte{}, f...)) })

	a.Send([]byte("hello"), 3, Reliable)

	var nowMs int64
	var receivedEvents []Event
	for i := 0; i < 20; i++ {
		a.Step(nowMs)
		receivedEvents = append(receivedEvents, b.Step(nowMs)...)

		a.Flush(nowMs, 50*time.Millisecond)
		b.Flush(nowMs, 50*time.Millisecond)

		for _, f := range aOut {
			b.HandleFrame(f, nowMs)
		}
		aOut = nil
		for _, f := range bOut {
			a.HandleFrame(f, nowMs)
		}
		bOut = nil

		nowMs += 50
	}

	var received *Event
	for i := range receivedEvents {
		if receivedEvents[i].Type == EventReceive {
			received = &receivedEvents[i]
			break
		}
	}
	if received == nil {
		t.Fatalf("expected b to surface EventReceive within 20 ticks; events = %+v", receivedEvents)
	}
	if received.Channel != 3 || string(received.Data) != "hello" {
		t.Fatalf("received event = %+v, want channel 3 data %q", received, "hello")
	}

	// Continue exchanging a little longer so the ack frame makes it back
	// to a and the reliable packet's allocation is released.
	for i := 0; i < 10; i++ {
		a.Step(nowMs)
		b.Step(nowMs)
		a.Flush(nowMs, 50*time.Millisecond)
		b.Flush(nowMs, 50*time.Millisecond)
		for _, f := range aOut {
			b.HandleFrame(f, nowMs)
		}
		aOut = nil
		for _, f := range bOut {
			a.HandleFrame(f, nowMs)
		}
		bOut = nil
		nowMs += 50
	}
	if a.SendBufferSize() != 0 {
		t.Fatalf("SendBufferSize() = %d after the ack round-trip, want 0", a.SendBufferSize())
	}
}

func TestHalfConnectionDisconnectDrainsThenReportsEvent(t *testing.T) {
	var out [][]byte
	cfg := DefaultConfig()
	h := NewHalfConnection(cfg, 0, func(f []byte) { out = append(out, f) })
	h.Step(0) // consume the initial EventConnect

	h.Send([]byte("bye"), 0, Unreliable)
	h.Disconnect(1000)

	if !h.draining {
		t.Fatal("expected draining=true after Disconnect")
	}
	if len(out) == 0 {
		t.Fatal("expected Disconnect's unbounded flush to emit at least one frame")
	}

	events := h.Step(1050)
	found := false
	for _, e := range events {
		if e.Type == EventDisconnect {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected EventDisconnect once local queues drained, got %+v", events)
	}

	// A second Disconnect call must be a no-op.
	out = nil
	h.Disconnect(2000)
	if len(out) != 0 {
		t.Fatal("a repeated Disconnect call should not flush again")
	}
}

func TestHalfConnectionWatchdogFiresAfterSilence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WatchdogTimeout = 100 * time.Millisecond
	h := NewHalfConnection(cfg, 0, func([]byte) {})

	events := h.Step(50) // within the timeout: no error yet
	for _, e := range events {
		if e.Type == EventError {
			t.Fatalf("unexpected EventError at t=50ms (watchdog is 100ms): %+v", e)
		}
	}

	events = h.Step(150) // at/after the timeout with nothing received
	found := false
	for _, e := range events {
		if e.Type == EventError && e.Kind == ErrorTimeout {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrorTimeout at t=150ms, got %+v", events)
	}
}

func TestHalfConnectionHandleFrameResetsWatchdog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WatchdogTimeout = 100 * time.Millisecond
	var out [][]byte
	h := NewHalfConnection(cfg, 0, func(f []byte) { out = append(out, append([]byte{}, f...)) })
	h.Step(0)
	h.Send([]byte("x"), 0, Unreliable)
	h.Flush(0, 50*time.Millisecond)
	if len(out) == 0 {
		t.Fatal("expected at least one frame flushed")
	}

	// Feed one of our own frames back at t=80ms: any well-formed inbound
	// frame counts as proof of life, regardless of its type.
	h.HandleFrame(out[0], 80)

	events := h.Step(150) // 150ms since construction, but only 70ms since the frame at 80ms
	for _, e := range events {
		if e.Type == EventError {
			t.Fatalf("watchdog should have been reset by the inbound frame at t=80ms, got %+v", e)
		}
	}
}
