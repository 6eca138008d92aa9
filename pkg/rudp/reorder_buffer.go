package rudp

// reorderCallback classifies one frame ID as acknowledged or lost for
// loss-history accounting (spec.md §4.H).
type reorderCallback func(id uint32, acked bool)

// reorderBuffer holds up to two frame IDs that arrived out of order so
// that ack/nack classification happens in strict ID order even when acks
// themselves arrive out of sequence (spec.md §4.H).
type reorderBuffer struct {
	baseID  uint32
	hasBase bool

	slots    [2]uint32
	occupied [2]bool

	maxSpan uint32
}

func newReorderBuffer(maxSpan uint32) *reorderBuffer {
	return &reorderBuffer{maxSpan: maxSpan}
}

// put presents a newly-acknowledged frame ID, classifying it and any ID
// it resolves transitively through cb. A third distinct out-of-order ID
// arriving while both slots are already occupied forces the current base
// to be declared lost (nothing left that could ever fill it) and retried
// until newID finds a home — the buffer only ever holds two IDs strictly
// ahead of base, so this loop always terminates.
func (b *reorderBuffer) put(newID uint32, cb reorderCallback) {
	if !b.hasBase {
		b.baseID = newID
		b.hasBase = true
	}
	if newID-b.baseID >= b.maxSpan {
		return
	}
	for {
		if newID == b.baseID {
			cb(b.baseID, true)
			b.baseID++
			b.drainMatching(cb)
			return
		}
		if !b.occupied[0] {
			b.slots[0] = newID
			b.occupied[0] = true
			return
		}
		if !b.occupied[1] {
			b.slots[1] = newID
			b.occupied[1] = true
			return
		}
		cb(b.baseID, false)
		b.baseID++
		b.drainMatching(cb)
	}
}

// drainMatching repeatedly classifies stored slots matching the current
// base as acks, advancing base each time, until no slot matches.
func (b *reorderBuffer) drainMatching(cb reorderCallback) {
	for {
		advanced := false
		for i := range b.slots {
			if b.occupied[i] && b.slots[i] == b.baseID {
				cb(b.baseID, true)
				b.occupied[i] = false
				b.baseID++
				advanced = true
			}
		}
		if !advanced {
			return
		}
	}
}

// advance classifies everything in [base, newBase) in ID order: a stored
// slot's ID as an ack, every other ID as a nack. Used when the frame
// queue's window or log retires entries that were never explicitly acked
// (spec.md §4.D advance_transfer_window, forget_frames).
func (b *reorderBuffer) advance(newBase uint32, cb reorderCallback) {
	if !b.hasBase {
		b.baseID = newBase
		b.hasBase = true
		return
	}
	for b.baseID != newBase {
		matched := false
		for i := range b.slots {
			if b.occupied[i] && b.slots[i] == b.baseID {
				cb(b.baseID, true)
				b.occupied[i] = false
				matched = true
			}
		}
		if !matched {
			cb(b.baseID, false)
		}
		b.baseID++
	}
}
