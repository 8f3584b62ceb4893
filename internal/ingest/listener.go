// Package ingest receives rosbridge-framed sensor envelopes over UDP,
// optionally journals them for replay, and dispatches them into the
// estimator's staging slots.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwon789/adaptive-filter/internal/monitoring"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
)

// UDPListener reads sensor datagrams and hands them to a Router.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	router      *Router
	journal     *Journal

	mu   sync.Mutex
	conn *net.UDPConn

	datagrams    atomic.Uint64
	bytes        atomic.Uint64
	decodeErrors atomic.Uint64
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Router      *Router
	Journal     *Journal // optional
}

// ListenerStats is a snapshot of receive counters.
type ListenerStats struct {
	Datagrams    uint64 `json:"datagrams"`
	Bytes        uint64 `json:"bytes"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 20
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      rcvBuf,
		logInterval: logInterval,
		router:      config.Router,
		journal:     config.Journal,
	}
}

// Start begins listening for sensor datagrams and processing them.
// It blocks until ctx is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		log.Printf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
	}

	log.Printf("Sensor listener started on %s with receive buffer %d bytes", conn.LocalAddr(), l.rcvBuf)

	go l.startStatsLogging(ctx)

	// Largest expected envelope is an odometry message with two
	// 36-entry covariance arrays, well under 8KB.
	buffer := make([]byte, 8192)

	for {
		select {
		case <-ctx.Done():
			log.Print("Sensor listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, from, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.handleDatagram(buffer[:n]); err != nil {
				// Fires per bad datagram so it goes through the
				// redirectable logger rather than the global one.
				monitoring.Logf("Error handling datagram from %v: %v", from, err)
			}
		}
	}
}

// LocalAddr returns the bound address, or nil before Start has bound
// the socket.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// handleDatagram journals and dispatches a single received datagram.
func (l *UDPListener) handleDatagram(datagram []byte) error {
	l.datagrams.Add(1)
	l.bytes.Add(uint64(len(datagram)))

	if l.journal != nil {
		if err := l.journal.Record(datagram); err != nil {
			log.Printf("Journal write failed: %v", err)
		}
	}

	var env rosmsg.Envelope
	if err := json.Unmarshal(datagram, &env); err != nil {
		l.decodeErrors.Add(1)
		return fmt.Errorf("malformed envelope: %w", err)
	}

	if l.router == nil {
		return nil
	}
	if err := l.router.Dispatch(env); err != nil {
		l.decodeErrors.Add(1)
		return err
	}
	return nil
}

// Stats returns a snapshot of the receive counters.
func (l *UDPListener) Stats() ListenerStats {
	return ListenerStats{
		Datagrams:    l.datagrams.Load(),
		Bytes:        l.bytes.Load(),
		DecodeErrors: l.decodeErrors.Load(),
	}
}

// startStatsLogging periodically logs receive statistics.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := l.Stats()
			monitoring.Logf("Sensor listener: %d datagrams, %d bytes, %d decode errors",
				s.Datagrams, s.Bytes, s.DecodeErrors)
		}
	}
}
