// Package rudp implements a connection-oriented reliable/semi-reliable
// datagram transport layered over an unreliable unicast packet service
// (conceptually UDP, though HalfConnection never touches a socket
// itself — see socket.go for the thin net.UDPConn adapter).
//
// A single HalfConnection ties together the package's eight moving
// parts for one peer:
//
//   - PacketSender / PacketReceiver split application packets into
//     MTU-sized fragments and reassemble them on the other end, gated
//     by a fixed-size packet window and a per-channel "parent lead"
//     ordering dependency.
//   - pendingQueue / resendQueue hold fragments waiting for their first
//     send and their next retransmit, respectively.
//   - frameQueue is the sender's frame log: it tracks which frames are
//     still unacknowledged, drives loss accounting, and answers
//     selective-ack groups.
//   - congestionController implements TFRC (RFC 5348): a receive-rate
//     history, a loss-interval history, and the TCP throughput
//     equation decide the outgoing send rate.
//   - Emitter is the per-tick scheduler: it spends the flush
//     allocation on Ack frames, then Data frames, then a Sync frame,
//     in that fixed priority order.
//
// Callers drive a HalfConnection with HandleFrame for inbound bytes and
// Step/Flush once per tick; see the Application API on HalfConnection
// for the rest.
package rudp
