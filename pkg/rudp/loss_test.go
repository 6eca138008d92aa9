package rudp

import (
	"math"
	"testing"
	"time"
)

func TestLossHistoryAckNoopWhenEmpty(t *testing.T) {
	h := newLossHistory()
	h.ack() // must not panic on an empty history
	if len(h.intervals) != 0 {
		t.Fatalf("ack() on an empty history created %d intervals", len(h.intervals))
	}
}

func TestLossHistoryNackOpensHeadInterval(t *testing.T) {
	h := newLossHistory()
	h.nack(1000, 100*time.Millisecond)
	if len(h.intervals) != 1 {
		t.Fatalf("len(intervals) = %d, want 1", len(h.intervals))
	}
	if h.intervals[0].length != 1 {
		t.Fatalf("head length = %d, want 1", h.intervals[0].length)
	}
	if h.intervals[0].endTimeMs != 1100 {
		t.Fatalf("head endTimeMs = %d, want 1100", h.intervals[0].endTimeMs)
	}
}

func TestLossHistoryAckIncrementsHead(t *testing.T) {
	h := newLossHistory()
	h.nack(1000, 100*time.Millisecond)
	h.ack()
	h.ack()
	if h.intervals[0].length != 3 {
		t.Fatalf("head length = %d, want 3 (1 initial nack + 2 acks)", h.intervals[0].length)
	}
}

func TestLossHistoryNackWithinOpenIntervalExtendsIt(t *testing.T) {
	h := newLossHistory()
	h.nack(1000, 100*time.Millisecond) // interval ends at 1100
	h.nack(1050, 100*time.Millisecond) // still before 1100: same interval
	if len(h.intervals) != 1 {
		t.Fatalf("len(intervals) = %d, want 1", len(h.intervals))
	}
	if h.intervals[0].length != 2 {
		t.Fatalf("head length = %d, want 2", h.intervals[0].length)
	}
}

func TestLossHistoryNackPastIntervalEndOpensNewHead(t *testing.T) {
	h := newLossHistory()
	h.nack(1000, 100*time.Millisecond) // ends 1100
	h.nack(1200, 50*time.Millisecond)  // past 1100: new head
	if len(h.intervals) != 2 {
		t.Fatalf("len(intervals) = %d, want 2", len(h.intervals))
	}
	if h.intervals[0].length != 1 {
		t.Fatalf("new head length = %d, want 1", h.intervals[0].length)
	}
	if h.intervals[1].length != 1 {
		t.Fatalf("old head (now index 1) length = %d, want 1", h.intervals[1].length)
	}
}

func TestLossHistoryNackTruncatesAtCapacity(t *testing.T) {
	h := newLossHistory()
	for i := 0; i < lossHistoryCapacity+5; i++ {
		t0 := int64(i) * 1000
		h.nack(t0, 1*time.Millisecond) // each interval's window closes almost immediately, forcing a new head next call
	}
	if len(h.intervals) != lossHistoryCapacity {
		t.Fatalf("len(intervals) = %d, want capped at %d", len(h.intervals), lossHistoryCapacity)
	}
}

func TestLossHistoryReset(t *testing.T) {
	h := newLossHistory()
	h.reset(0.1)
	if len(h.intervals) != 1 {
		t.Fatalf("len(intervals) = %d, want 1", len(h.intervals))
	}
	if h.intervals[0].length != 10 {
		t.Fatalf("head length = %d, want 10 (round(1/0.1))", h.intervals[0].length)
	}

	// The seeded head's endTimeMs is 0, so a nack sent at 0 is not inside
	// it and opens a second interval.
	h.nack(0, 10*time.Millisecond)
	h.reset(0.25)
	if h.intervals[0].length != 4 {
		t.Fatalf("head length after reseeding an existing head = %d, want 4", h.intervals[0].length)
	}
	if len(h.intervals) != 2 {
		t.Fatalf("reset must not add a new interval, len = %d", len(h.intervals))
	}
}

func TestLossHistoryLossRateEmpty(t *testing.T) {
	h := newLossHistory()
	if r := h.lossRate(); r != 0 {
		t.Fatalf("lossRate() on empty history = %v, want 0", r)
	}
}

func TestLossHistoryLossRateTakesMaxAlignment(t *testing.T) {
	h := newLossHistory()
	// Index 0 is most recent; 9 entries so both the drop-oldest and
	// drop-newest 8-wide windows are full.
	h.intervals = []lossInterval{
		{length: 1}, {length: 2}, {length: 3}, {length: 4},
		{length: 5}, {length: 6}, {length: 7}, {length: 8}, {length: 9},
	}
	// drop-oldest (offset 0, indices 0..7): weighted avg = 22/6
	// drop-newest (offset 1, indices 1..8): weighted avg = 28/6 (larger)
	want := 1.0 / (28.0 / 6.0)
	got := h.lossRate()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("lossRate() = %v, want %v", got, want)
	}
}

func TestLossHistoryLossRateSingleInterval(t *testing.T) {
	h := newLossHistory()
	h.intervals = []lossInterval{{length: 20}}
	got := h.lossRate()
	want := 1.0 / 20.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("lossRate() = %v, want %v", got, want)
	}
}

func TestWeightedIntervalAverageFewerThanEightEntries(t *testing.T) {
	intervals := []lossInterval{{length: 4}, {length: 8}}
	got := weightedIntervalAverage(intervals, 0)
	want := (4.0*1 + 8.0*1) / (1 + 1)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("weightedIntervalAverage = %v, want %v", got, want)
	}
}

func TestWeightedIntervalAverageOffsetBeyondLength(t *testing.T) {
	intervals := []lossInterval{{length: 4}}
	if got := weightedIntervalAverage(intervals, 5); got != 0 {
		t.Fatalf("weightedIntervalAverage with offset beyond length = %v, want 0", got)
	}
}
