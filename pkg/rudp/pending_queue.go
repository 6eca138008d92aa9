package rudp

// pendingEntry is one fragment awaiting its first send.
type pendingEntry struct {
	ref    fragRef
	resend bool
}

// pendingQueue is the FIFO of fresh fragments fed by the emitter when it
// begins processing a newly emitted packet (spec.md §4.B).
type pendingQueue struct {
	entries []pendingEntry
}

func (q *pendingQueue) push(ref fragRef, resend bool) {
	q.entries = append(q.entries, pendingEntry{ref: ref, resend: resend})
}

func (q *pendingQueue) empty() bool { return len(q.entries) == 0 }

func (q *pendingQueue) front() (pendingEntry, bool) {
	if q.empty() {
		return pendingEntry{}, false
	}
	return q.entries[0], true
}

func (q *pendingQueue) pop() {
	if !q.empty() {
		q.entries = q.entries[1:]
	}
}
