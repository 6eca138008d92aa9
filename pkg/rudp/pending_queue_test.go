package rudp

import "testing"

func TestPendingQueueFIFOOrder(t *testing.T) {
	var q pendingQueue
	if !q.empty() {
		t.Fatal("new queue should be empty")
	}
	q.push(fragRef{packetID: 1, fragment: 0}, false)
	q.push(fragRef{packetID: 2, fragment: 0}, true)

	e, ok := q.front()
	if !ok || e.ref.packetID != 1 || e.resend {
		t.Fatalf("front() = %+v, ok=%v, want packetID 1, resend false", e, ok)
	}
	q.pop()
	e, ok = q.front()
	if !ok || e.ref.packetID != 2 || !e.resend {
		t.Fatalf("front() = %+v, ok=%v, want packetID 2, resend true", e, ok)
	}
	q.pop()
	if !q.empty() {
		t.Fatal("queue should be empty after popping every entry")
	}
}

func TestPendingQueueFrontOnEmpty(t *testing.T) {
	var q pendingQueue
	if _, ok := q.front(); ok {
		t.Fatal("front() on an empty queue should report ok=false")
	}
	q.pop() // must not panic
}
