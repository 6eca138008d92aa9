package main

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/ventosilenzioso/rudp/pkg/logger"
	"github.com/ventosilenzioso/rudp/pkg/rudp"
)

const version = "1.0.0"

func main() {
	logger.Banner("rudp demo server", version)

	host := "0.0.0.0"
	port := 7777
	maxPeers := 64

	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	config := rudp.DefaultConfig()

	var peerMu sync.Mutex
	peerIDs := make(map[string]xid.ID)

	sock, err := rudp.ListenUDP(addr, config, func(peer *net.UDPAddr) bool {
		peerMu.Lock()
		full := len(peerIDs) >= maxPeers
		peerMu.Unlock()
		if full {
			logger.Warn("rejecting %s: server full", peer.String())
			return false
		}
		return true
	})
	if err != nil {
		logger.Fatal("failed to bind UDP socket: %v", err)
	}
	logger.Success("listening on %s", sock.LocalAddr().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		err := sock.Serve(func(peer *net.UDPAddr, hc *rudp.HalfConnection) {
			id := xid.New()
			peerMu.Lock()
			peerIDs[peer.String()] = id
			peerMu.Unlock()
			logger.Info("peer %s connected (%s)", id.String(), peer.String())
		})
		if err != nil {
			logger.Error("serve loop exited: %v", err)
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal: %v, shutting down", sig)
			sock.Close()
			return
		case now := <-ticker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now
			sock.TickAll(elapsed, func(peer *net.UDPAddr, events []rudp.Event) {
				peerMu.Lock()
				id := peerIDs[peer.String()]
				peerMu.Unlock()
				for _, ev := range events {
					switch ev.Type {
					case rudp.EventReceive:
						logger.InfoCyan("peer %s ch %d: %d bytes", id.String(), ev.Channel, len(ev.Data))
					case rudp.EventDisconnect:
						logger.Warn("peer %s disconnected", id.String())
						sock.Forget(peer)
						peerMu.Lock()
						delete(peerIDs, peer.String())
						peerMu.Unlock()
					case rudp.EventError:
						logger.Error("peer %s error: %s", id.String(), ev.Kind.String())
					}
				}
			})
		}
	}
}
