package rudp

import (
	"math"
	"time"
)

// lossHistoryCapacity bounds the loss-interval deque at 9 entries per
// RFC 5348 §5.4.
const lossHistoryCapacity = 9

// lossInterval is one entry of the loss-interval history: the wall-clock
// time its successor loss was declared, and how many frames separated it
// from the loss before it. Index 0 (the head) is the most recent and
// in-progress interval.
type lossInterval struct {
	endTimeMs int64
	length    uint32
}

// lossHistory is the TFRC loss-interval history feeding loss_rate()
// (spec.md §4.H, RFC 5348 §5.4).
type lossHistory struct {
	intervals []lossInterval
}

func newLossHistory() *lossHistory {
	return &lossHistory{}
}

// ack records one more frame received without loss since the head
// interval began, saturating rather than overflowing.
func (h *lossHistory) ack() {
	if len(h.intervals) == 0 {
		return
	}
	if h.intervals[0].length < math.MaxUint32 {
		h.intervals[0].length++
	}
}

// nack records a loss. If the head interval is still open (sendTimeMs
// precedes its end), the loss belongs to it; otherwise a new head
// interval begins, and the history is truncated to lossHistoryCapacity.
func (h *lossHistory) nack(sendTimeMs int64, rtt time.Duration) {
	if len(h.intervals) == 0 || sendTimeMs >= h.intervals[0].endTimeMs {
		fresh := lossInterval{endTimeMs: sendTimeMs + rtt.Milliseconds(), length: 1}
		h.intervals = append([]lossInterval{fresh}, h.intervals...)
		if len(h.intervals) > lossHistoryCapacity {
			h.intervals = h.intervals[:lossHistoryCapacity]
		}
		return
	}
	h.intervals[0].length++
}

// reset reseeds the head interval's length from a loss rate p (the
// TFRC SlowStart-to-ThroughputEqn transition injects its back-solved p*
// this way, spec.md §4.E).
func (h *lossHistory) reset(p float64) {
	length := uint32(math.Round(1.0 / p))
	if len(h.intervals) == 0 {
		h.intervals = []lossInterval{{length: length}}
		return
	}
	h.intervals[0].length = length
}

// lossWeights are the RFC 5348 §5.4 weights applied to the 8 most recent
// intervals, most recent first.
var lossWeights = [8]float64{1, 1, 1, 1, 0.8, 0.6, 0.4, 0.2}

// lossRate computes RFC 5348 §5.4's weighted average of the loss-interval
// history, taking the max of the two possible 8-wide alignments: dropping
// the oldest retained interval, or dropping the newest (spec.md §4.H).
func (h *lossHistory) lossRate() float64 {
	if len(h.intervals) == 0 {
		return 0
	}
	dropOldest := weightedIntervalAverage(h.intervals, 0)
	dropNewest := weightedIntervalAverage(h.intervals, 1)
	avg := dropOldest
	if dropNewest > avg {
		avg = dropNewest
	}
	if avg <= 0 {
		return 0
	}
	return 1.0 / avg
}

// weightedIntervalAverage sums lossWeights[i]*intervals[offset+i].length
// over the 8-wide window starting at offset, normalized by the weight of
// the entries actually present.
func weightedIntervalAverage(intervals []lossInterval, offset int) float64 {
	var tot, wsum float64
	for i := 0; i < len(lossWeights); i++ {
		idx := i + offset
		if idx >= len(intervals) {
			break
		}
		tot += float64(intervals[idx].length) * lossWeights[i]
		wsum += lossWeights[i]
	}
	if wsum == 0 {
		return 0
	}
	return tot / wsum
}
