package publish

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/cwon789/adaptive-filter/internal/monitoring"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
)

// Sender forwards published estimator outputs to a downstream
// consumer as rosbridge envelopes over UDP: fused odometry plus the
// matching transform, and the derived range twist on its own topic.
type Sender struct {
	conn    *net.UDPConn
	address string

	odometryTopic  string
	derivedTopic   string
	transformTopic string

	mapFrame     string
	derivedFrame string

	sent       atomic.Uint64
	sendErrors atomic.Uint64
}

// SenderConfig contains configuration options for the egress sender.
type SenderConfig struct {
	Address string

	OdometryTopic     string // default "ekf/odometry"
	DerivedTwistTopic string // default "ekf/indirect_twist"
	TransformTopic    string // default "tf"

	MapFrame     string // default "chassis_init"
	DerivedFrame string // default "ind_lidar_frame"
}

// SenderStats is a snapshot of egress counters.
type SenderStats struct {
	Sent   uint64 `json:"sent"`
	Errors uint64 `json:"errors"`
}

// NewSender resolves and connects the egress socket.
func NewSender(config SenderConfig) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve egress address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create egress connection: %w", err)
	}

	s := &Sender{
		conn:           conn,
		address:        config.Address,
		odometryTopic:  config.OdometryTopic,
		derivedTopic:   config.DerivedTwistTopic,
		transformTopic: config.TransformTopic,
		mapFrame:       config.MapFrame,
		derivedFrame:   config.DerivedFrame,
	}
	if s.odometryTopic == "" {
		s.odometryTopic = "ekf/odometry"
	}
	if s.derivedTopic == "" {
		s.derivedTopic = "ekf/indirect_twist"
	}
	if s.transformTopic == "" {
		s.transformTopic = "tf"
	}
	if s.mapFrame == "" {
		s.mapFrame = "chassis_init"
	}
	if s.derivedFrame == "" {
		s.derivedFrame = "ind_lidar_frame"
	}
	return s, nil
}

// Run consumes events from the subscription until ctx is cancelled or
// the subscription is closed.
func (s *Sender) Run(ctx context.Context, sub *Subscriber) error {
	log.Printf("Egress sender forwarding to %s", s.address)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.sendEvent(ev)
		}
	}
}

func (s *Sender) sendEvent(ev Event) {
	switch {
	case ev.Estimate != nil:
		e := *ev.Estimate
		s.publish(s.odometryTopic, OdometryFromEstimate(e))
		s.publish(s.transformTopic, TransformFromEstimate(e))
	case ev.Derived != nil:
		s.publish(s.derivedTopic, OdometryFromDerived(*ev.Derived, s.mapFrame, s.derivedFrame))
	}
}

func (s *Sender) publish(topic string, msg any) {
	raw, err := rosmsg.Publication(topic, msg)
	if err != nil {
		s.countError(err)
		return
	}
	if _, err := s.conn.Write(raw); err != nil {
		s.countError(err)
		return
	}
	s.sent.Add(1)
}

func (s *Sender) countError(err error) {
	n := s.sendErrors.Add(1)
	if n%100 == 1 {
		monitoring.Logf("Egress send failed (%d so far): %v", n, err)
	}
}

// Stats returns a snapshot of the egress counters.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Sent:   s.sent.Load(),
		Errors: s.sendErrors.Load(),
	}
}

// Close closes the egress socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
