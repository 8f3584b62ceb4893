package ingest

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
	"github.com/cwon789/adaptive-filter/internal/timeutil"
)

// Router maps envelope topics onto the three sensor staging slots.
// Envelopes on other topics are counted and ignored; the sensor bus
// usually carries traffic for other consumers too.
type Router struct {
	inertialTopic string
	wheelTopic    string
	rangeTopic    string

	staging *fusion.Staging
	clock   timeutil.Clock

	inertial atomic.Uint64
	wheel    atomic.Uint64
	rng      atomic.Uint64
	unknown  atomic.Uint64
}

// RouterConfig contains configuration options for the router.
// Unset topics fall back to the conventional names.
type RouterConfig struct {
	InertialTopic string
	WheelTopic    string
	RangeTopic    string
	Clock         timeutil.Clock
}

// RouterStats is a snapshot of dispatch counters.
type RouterStats struct {
	Inertial uint64 `json:"inertial"`
	Wheel    uint64 `json:"wheel"`
	Range    uint64 `json:"range"`
	Unknown  uint64 `json:"unknown"`
}

// NewRouter creates a router feeding the given staging slots.
func NewRouter(staging *fusion.Staging, config RouterConfig) *Router {
	r := &Router{
		inertialTopic: config.InertialTopic,
		wheelTopic:    config.WheelTopic,
		rangeTopic:    config.RangeTopic,
		staging:       staging,
		clock:         config.Clock,
	}
	if r.inertialTopic == "" {
		r.inertialTopic = "imu/data"
	}
	if r.wheelTopic == "" {
		r.wheelTopic = "odom"
	}
	if r.rangeTopic == "" {
		r.rangeTopic = "laser_odom_to_init"
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	return r
}

// Dispatch decodes the envelope payload for its topic and stages the
// measurement. Unknown topics are not an error.
func (r *Router) Dispatch(env rosmsg.Envelope) error {
	if env.Op != rosmsg.OpPublish {
		return fmt.Errorf("unsupported op %q on topic %q", env.Op, env.Topic)
	}

	switch env.Topic {
	case r.inertialTopic:
		var msg rosmsg.Imu
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return fmt.Errorf("topic %q: %w", env.Topic, err)
		}
		r.staging.Inertial.Put(InertialFromImu(msg, r.clock.Now()))
		r.inertial.Add(1)

	case r.wheelTopic:
		var msg rosmsg.Odometry
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return fmt.Errorf("topic %q: %w", env.Topic, err)
		}
		r.staging.Wheel.Put(WheelFromOdometry(msg, r.clock.Now()))
		r.wheel.Add(1)

	case r.rangeTopic:
		var msg rosmsg.Odometry
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			return fmt.Errorf("topic %q: %w", env.Topic, err)
		}
		r.staging.Range.Put(RangeFromOdometry(msg, r.clock.Now()))
		r.rng.Add(1)

	default:
		r.unknown.Add(1)
	}
	return nil
}

// Stats returns a snapshot of the dispatch counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Inertial: r.inertial.Load(),
		Wheel:    r.wheel.Load(),
		Range:    r.rng.Load(),
		Unknown:  r.unknown.Load(),
	}
}
