package rudp

import (
	"net"
	"sync"
	"time"
)

// Socket binds one UDP port and multiplexes it across many peers, each
// with its own HalfConnection (spec.md §6 "Host collaborator" owns
// addressing and the handshake; Socket is the minimal piece of that
// collaborator this package ships so a caller isn't left re-deriving
// net.ListenUDP/ReadFromUDP boilerplate). Grounded on
// source/server/server.go's Start/listen pair: one bound *net.UDPConn,
// one read loop, a background ticker driving periodic work.
type Socket struct {
	conn *net.UDPConn

	mu    sync.Mutex
	peers map[string]*peerConn

	config Config
	accept func(addr *net.UDPAddr) bool

	closeOnce sync.Once
	closed    chan struct{}
}

// peerConn pairs one peer's HalfConnection with the lock that serializes
// access to it: HalfConnection is single-threaded by contract (see
// halfconn.go), but Serve's read loop and TickAll's caller-driven loop run
// on different goroutines and both touch it.
type peerConn struct {
	addr *net.UDPAddr
	mu   sync.Mutex
	conn *HalfConnection
}

// ListenUDP binds addr and returns a Socket ready to Serve. accept, if
// non-nil, is consulted for every address with no existing connection
// before one is created (spec.md §6 ErrorServerFull is the caller's to
// raise from here).
func ListenUDP(addr *net.UDPAddr, config Config, accept func(addr *net.UDPAddr) bool) (*Socket, error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Socket{
		conn:   conn,
		peers:  make(map[string]*peerConn),
		config: config,
		accept: accept,
		closed: make(chan struct{}),
	}, nil
}

// LocalAddr returns the socket's bound address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops Serve and releases the UDP socket.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.conn.Close()
}

// Serve runs the receive loop until Close is called, dispatching every
// datagram to the HalfConnection for its source address (creating one via
// onConnect/accept on first contact). It returns nil once Close has been
// called and skips read errors before that; net.UDPConn's own Close
// unblocks the blocking ReadFromUDP call.
func (s *Socket) Serve(onConnect func(addr *net.UDPAddr, hc *HalfConnection)) error {
	buf := make([]byte, MaxFrameSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				continue
			}
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		p, created := s.peerFor(addr)
		if p == nil {
			continue
		}
		if created && onConnect != nil {
			onConnect(addr, p.conn)
		}
		p.mu.Lock()
		p.conn.HandleFrame(frame, nowMillis())
		p.mu.Unlock()
	}
}

func (s *Socket) peerFor(addr *net.UDPAddr) (p *peerConn, created bool) {
	key := addr.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.peers[key]; ok {
		return p, false
	}
	if s.accept != nil && !s.accept(addr) {
		return nil, false
	}

	a := addr
	hc := NewHalfConnection(s.config, nowMillis(), func(frame []byte) {
		s.conn.WriteToUDP(frame, a)
	})
	p = &peerConn{addr: addr, conn: hc}
	s.peers[key] = p
	return p, true
}

// TickAll advances every known peer by one tick: Step, then Flush.
// Callers drive this from their own ticker (spec.md §5 describes a
// fixed-rate external driver; source/server/server.go's updateLoop is
// the teacher's equivalent).
func (s *Socket) TickAll(elapsed time.Duration, onEvents func(addr *net.UDPAddr, events []Event)) {
	now := nowMillis()

	s.mu.Lock()
	peers := make([]*peerConn, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.mu.Lock()
		events := p.conn.Step(now)
		p.conn.Flush(now, elapsed)
		p.mu.Unlock()
		if onEvents != nil && len(events) > 0 {
			onEvents(p.addr, events)
		}
	}
}

// Forget drops a peer's HalfConnection, e.g. once Step has reported its
// EventDisconnect.
func (s *Socket) Forget(addr *net.UDPAddr) {
	s.mu.Lock()
	delete(s.peers, addr.String())
	s.mu.Unlock()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
