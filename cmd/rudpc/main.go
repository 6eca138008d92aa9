package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ventosilenzioso/rudp/pkg/logger"
	"github.com/ventosilenzioso/rudp/pkg/rudp"
)

const version = "1.0.0"

func main() {
	logger.Banner("rudp demo client", version)

	serverAddr := "127.0.0.1:7777"
	if len(os.Args) > 1 {
		serverAddr = os.Args[1]
	}

	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		logger.Fatal("bad server address %q: %v", serverAddr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		logger.Fatal("failed to dial %s: %v", serverAddr, err)
	}
	defer conn.Close()

	// hc is single-threaded by contract (see pkg/rudp's HalfConnection doc
	// comment); hcMu serializes the read goroutine's HandleFrame calls
	// against the main loop's Step/Send/Flush calls below.
	var hcMu sync.Mutex
	config := rudp.DefaultConfig()
	hc := rudp.NewHalfConnection(config, nowMillis(), func(frame []byte) {
		conn.Write(frame)
	})

	go func() {
		buf := make([]byte, rudp.MaxFrameSize)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			hcMu.Lock()
			hc.HandleFrame(frame, nowMillis())
			hcMu.Unlock()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	lastTick := time.Now()

	modes := []rudp.SendMode{rudp.TimeSensitive, rudp.Unreliable, rudp.Persistent, rudp.Reliable}
	var tick int

	for {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal: %v, disconnecting", sig)
			hcMu.Lock()
			hc.Disconnect(nowMillis())
			hcMu.Unlock()
			return
		case now := <-ticker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now

			hcMu.Lock()
			events := hc.Step(nowMillis())
			disconnected := false
			for _, ev := range events {
				switch ev.Type {
				case rudp.EventReceive:
					logger.InfoCyan("ch %d: %d bytes", ev.Channel, len(ev.Data))
				case rudp.EventError:
					logger.Error("error: %s", ev.Kind.String())
				case rudp.EventDisconnect:
					logger.Warn("disconnected")
					disconnected = true
				}
			}

			if tick%20 == 0 {
				mode := modes[(tick/20)%len(modes)]
				channel := uint8((tick / 20) % rudp.ChannelCount)
				payload := []byte(fmt.Sprintf("tick=%d mode=%s channel=%d", tick, mode, channel))
				hc.Send(payload, channel, mode)
				logger.Info("sent %s on channel %d (%d bytes)", mode, channel, len(payload))
			}

			hc.Flush(nowMillis(), elapsed)
			hcMu.Unlock()
			tick++
			if disconnected {
				return
			}
		}
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
