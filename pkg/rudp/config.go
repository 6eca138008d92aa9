package rudp

import "time"

// Config carries the values a real endpoint would negotiate during the
// out-of-scope handshake (spec.md §6 "Host state machine"): the peer's
// advertised limits, plus the ambient knobs this package itself exposes
// (watchdog/keepalive, allocation budgets).
type Config struct {
	// MaxReceiveRate caps the congestion controller's send_rate toward
	// this peer, bytes/s.
	MaxReceiveRate int

	// MaxPacketSize is the largest application packet this peer will
	// accept (at most the package-wide MaxPacketSize).
	MaxPacketSize int

	// MaxSendAlloc / MaxReceiveAlloc bound PacketSender/PacketReceiver's
	// allocation budgets.
	MaxSendAlloc    int
	MaxReceiveAlloc int

	// WatchdogTimeout is how long to tolerate receiving nothing usable
	// before surfacing ErrorTimeout (spec.md §5).
	WatchdogTimeout time.Duration

	// Keepalive enables the keepalive Sync cadence (SPEC_FULL.md
	// supplemented feature 3) when the connection would otherwise go
	// silent with nothing left to acknowledge.
	Keepalive bool
}

// DefaultConfig returns the package defaults used throughout its tests
// and the demo host.
func DefaultConfig() Config {
	return Config{
		MaxReceiveRate:  1 << 20, // 1 MiB/s
		MaxPacketSize:   MaxPacketSize,
		MaxSendAlloc:    1 << 24, // 16 MiB
		MaxReceiveAlloc: 1 << 24,
		WatchdogTimeout: WatchdogTimeout,
		Keepalive:       true,
	}
}
