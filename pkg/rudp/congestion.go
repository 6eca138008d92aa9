package rudp

import "math"

// congestionMode is the TFRC state machine's current phase (spec.md
// §4.E "Mode").
type congestionMode uint8

const (
	modeAwaitSend congestionMode = iota
	modeSlowStart
	modeThroughputEqn
)

// congestionController implements RFC 5348 (TFRC) sender-side congestion
// control, as modified by spec.md §4.E.
type congestionController struct {
	mode congestionMode

	sendRate    float64 // bytes/s
	maxSendRate float64

	hasRTT bool
	rttS   float64
	rttMs  int64
	rtoMs  int64

	prevLossRate float64

	nofeedbackExpMs int64
	nofeedbackIdle  bool

	recvRates *recvRateSet
	loss      *lossHistory

	// lastFeedbackMs anchors the elapsed-time window used to turn one
	// ack-feedback tuple's total_ack_size into a receive-rate sample; the
	// spec leaves "recv_rate" abstract (it is the receiver-measured rate
	// in the original design), so here it is derived sender-side from
	// consecutive feedback arrivals.
	lastFeedbackMs int64

	// SlowStart-only state.
	firstFeedback     bool
	timeLastDoubledMs int64

	// ThroughputEqn-only state.
	sendRateTCP float64
}

func newCongestionController(maxSendRate float64, loss *lossHistory) *congestionController {
	return &congestionController{
		mode:        modeAwaitSend,
		maxSendRate: maxSendRate,
		recvRates:   newRecvRateSet(),
		loss:        loss,
	}
}

// SendRate returns the current allowed sending rate in bytes/s.
func (c *congestionController) SendRate() float64 {
	if c.mode == modeAwaitSend {
		return c.maxSendRate
	}
	return c.sendRate
}

// RTTSeconds returns the RTT estimate and whether one has ever been
// computed (spec.md §6 rtt_s, SPEC_FULL.md supplemented feature 1).
func (c *congestionController) RTTSeconds() (float64, bool) {
	return c.rttS, c.hasRTT
}

// NotifyFrameSent transitions AwaitSend to SlowStart on the very first
// frame a connection ever sends (spec.md §4.E notify_frame_sent). The send
// rate stays at maxSendRate until the first feedback sets it.
func (c *congestionController) NotifyFrameSent(nowMs int64) {
	if c.mode != modeAwaitSend {
		return
	}
	c.mode = modeSlowStart
	c.firstFeedback = true
	c.sendRate = c.maxSendRate
	c.nofeedbackExpMs = nowMs + 2000
	c.nofeedbackIdle = false
	c.recvRates.init(nowMs)
}

// Step advances the controller by one tick, consuming any feedback the
// frame queue has accumulated since the last call, or checking the
// nofeedback timer if none has arrived (spec.md §4.E step).
func (c *congestionController) Step(nowMs int64, fq *frameQueue) {
	if c.mode == modeAwaitSend {
		return
	}
	feedback := fq.takeFeedback()
	if len(feedback) == 0 {
		if nowMs >= c.nofeedbackExpMs {
			c.nofeedbackExpired(nowMs)
		}
		return
	}
	lossRate := fq.loss.lossRate()
	for _, fb := range feedback {
		rttSampleMs := nowMs - fb.LastSendTimeMs
		if rttSampleMs < 1 {
			rttSampleMs = 1
		}
		elapsedMs := nowMs - c.lastFeedbackMs
		if elapsedMs < 1 {
			elapsedMs = 1
		}
		recvRate := float64(fb.TotalAckSize) * 1000 / float64(elapsedMs)
		c.handleFeedback(nowMs, float64(rttSampleMs)/1000, recvRate, lossRate, fb.RateLimited)
		c.lastFeedbackMs = nowMs
	}
}

// handleFeedback is spec.md §4.E's handle_feedback.
func (c *congestionController) handleFeedback(nowMs int64, rttSample, recvRate, lossRate float64, rateLimited bool) {
	const rttAlpha = 0.1
	if !c.hasRTT {
		c.rttS = rttSample
	} else {
		c.rttS = (1-rttAlpha)*c.rttS + rttAlpha*rttSample
	}
	c.hasRTT = true
	c.rttMs = int64(c.rttS * 1000)
	c.rtoMs = int64(c.computeRTOSeconds() * 1000)

	lossIncrease := lossRate > c.prevLossRate
	var sendRateLimit float64
	switch {
	case rateLimited:
		sendRateLimit = math.Min(c.recvRates.rateLimitedUpdate(nowMs, recvRate, c.rttMs), c.maxSendRate) * 2
	case lossIncrease:
		sendRateLimit = math.Min(c.recvRates.lossIncreaseUpdate(nowMs, recvRate), c.maxSendRate)
	default:
		sendRateLimit = math.Min(c.recvRates.dataLimitedUpdate(nowMs, recvRate)*2, c.maxSendRate)
	}

	c.prevLossRate = lossRate

	switch c.mode {
	case modeSlowStart:
		if !lossIncrease {
			initialRate := initialTCPWindow / c.rttS
			if c.firstFeedback {
				c.sendRate = initialRate
				c.timeLastDoubledMs = nowMs
			} else if float64(nowMs-c.timeLastDoubledMs) >= c.rttS*1000 {
				doubled := clamp(c.sendRate*2, initialRate, sendRateLimit)
				c.sendRate = doubled
				c.timeLastDoubledMs = nowMs
			}
		} else {
			var target float64
			if c.firstFeedback {
				target = tfrcMSS / 2 / c.rttS
			} else {
				target = c.sendRate / 2
			}
			pStar := inverseTCPThroughput(c.rttS, target)
			c.loss.reset(pStar)
			c.mode = modeThroughputEqn
			c.sendRateTCP = target
			c.sendRate = clamp(target, minimumRate, sendRateLimit)
		}
		c.firstFeedback = false
	case modeThroughputEqn:
		c.sendRateTCP = tcpThroughput(c.rttS, lossRate)
		c.sendRate = clamp(c.sendRateTCP, minimumRate, sendRateLimit)
	}

	c.nofeedbackExpMs = nowMs + c.rtoMs
	c.nofeedbackIdle = true
}

// nofeedbackExpired is spec.md §4.E's nofeedback_expired.
func (c *congestionController) nofeedbackExpired(nowMs int64) {
	switch c.mode {
	case modeSlowStart:
		if c.hasRTT && c.nofeedbackIdle && c.sendRate < 2*c.recvRates.max() {
			// keep rate
		} else {
			c.sendRate = math.Max(c.sendRate/2, minimumRate)
		}
	case modeThroughputEqn:
		recoverRate := initialTCPWindow / c.rttS
		if c.nofeedbackIdle && c.recvRates.max() < recoverRate {
			// keep rate
		} else {
			newLimit := c.sendRate / 2
			c.recvRates.resetTo(newLimit)
			c.sendRate = math.Min(c.sendRateTCP, newLimit)
		}
	}
	c.nofeedbackIdle = false
	c.rtoMs = int64(c.computeRTOSeconds() * 1000)
	c.nofeedbackExpMs = nowMs + c.rtoMs
}

func (c *congestionController) computeRTOSeconds() float64 {
	rate := c.sendRate
	if rate <= 0 {
		rate = minimumRate
	}
	return math.Max(4*c.rttS, 2*tfrcMSS/rate)
}
