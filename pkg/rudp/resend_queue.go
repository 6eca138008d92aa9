package rudp

import (
	"container/heap"
	"time"
)

// resendEntry is one scheduled (re)transmission of a retransmittable
// fragment (spec.md §4.B).
type resendEntry struct {
	ref       fragRef
	resendAt  int64 // unix millis
	sendCount int
}

// resendHeap is a container/heap min-heap ordered by resendAt. No example
// in the retrieved corpus carries a third-party priority-queue dependency
// for this kind of scheduling (see SPEC_FULL.md), so this uses the
// standard library's container/heap directly.
type resendHeap []resendEntry

func (h resendHeap) Len() int            { return len(h) }
func (h resendHeap) Less(i, j int) bool  { return h[i].resendAt < h[j].resendAt }
func (h resendHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resendHeap) Push(x interface{}) { *h = append(*h, x.(resendEntry)) }
func (h *resendHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// resendQueue schedules retransmissions by next-resend time, backing off
// exponentially and capping at MaxSendCount attempts per fragment.
type resendQueue struct {
	heap resendHeap
}

func newResendQueue() *resendQueue {
	q := &resendQueue{}
	heap.Init(&q.heap)
	return q
}

// pushInitial schedules a fragment's first retransmission after its
// initial send, rtt from now.
func (q *resendQueue) pushInitial(ref fragRef, now time.Time, rtt time.Duration) {
	heap.Push(&q.heap, resendEntry{
		ref:       ref,
		resendAt:  now.Add(rtt).UnixMilli(),
		sendCount: 1,
	})
}

// pushRetransmit schedules the next retransmission after a fragment has
// just been resent for the sendCount'th time (1-indexed, pre-increment),
// backing off by rtt*2^(sendCount-1) and capping the attempt counter at
// MaxSendCount.
func (q *resendQueue) pushRetransmit(ref fragRef, now time.Time, rtt time.Duration, sendCount int) {
	if sendCount >= MaxSendCount {
		return
	}
	backoff := rtt * time.Duration(uint64(1)<<uint(sendCount-1))
	heap.Push(&q.heap, resendEntry{
		ref:       ref,
		resendAt:  now.Add(backoff).UnixMilli(),
		sendCount: sendCount + 1,
	})
}

func (q *resendQueue) empty() bool { return q.heap.Len() == 0 }

// peekDue returns the earliest-scheduled entry if its resend time has
// already passed.
func (q *resendQueue) peekDue(now time.Time) (resendEntry, bool) {
	if q.empty() {
		return resendEntry{}, false
	}
	top := q.heap[0]
	if top.resendAt > now.UnixMilli() {
		return resendEntry{}, false
	}
	return top, true
}

func (q *resendQueue) popDue(now time.Time) (resendEntry, bool) {
	e, ok := q.peekDue(now)
	if !ok {
		return resendEntry{}, false
	}
	heap.Pop(&q.heap)
	return e, true
}
