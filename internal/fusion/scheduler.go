package fusion

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cwon789/adaptive-filter/internal/timeutil"
)

// SchedulerConfig wires a filter to its inputs and outputs.
type SchedulerConfig struct {
	Params  Params
	Filter  *Filter
	Staging *Staging

	// Clock drives the tick loop; defaults to the real clock.
	Clock timeutil.Clock

	// Publish receives the estimate on ticks where the publish
	// trigger matched. Optional.
	Publish func(Estimate)

	// PublishDerived receives the twist derived from consecutive
	// range poses, before it is fused. Optional.
	PublishDerived func(DerivedTwist)
}

// Scheduler runs the fixed-rate estimation loop: one prediction per
// tick, then at most one correction per sensor from the staging
// slots. All filter access happens on the loop goroutine.
type Scheduler struct {
	cfg SchedulerConfig

	lastTick time.Time
	hasTick  bool

	ticks     atomic.Uint64
	published atomic.Uint64
}

// SchedulerStats is a snapshot of loop throughput counters.
type SchedulerStats struct {
	Ticks     uint64 `json:"ticks"`
	Published uint64 `json:"published"`
}

// NewScheduler validates the wiring and returns a scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Filter == nil {
		return nil, errors.New("scheduler: filter is required")
	}
	if cfg.Staging == nil {
		return nil, errors.New("scheduler: staging is required")
	}
	if cfg.Params.TickInterval <= 0 {
		return nil, errors.New("scheduler: tick interval must be positive")
	}
	if !ValidStage(cfg.Params.PublishTrigger) {
		return nil, errors.New("scheduler: unknown publish trigger")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Scheduler{cfg: cfg}, nil
}

// Run ticks the loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	opsf("scheduler: running, tick interval %s, publish trigger %q",
		s.cfg.Params.TickInterval, s.cfg.Params.PublishTrigger)

	ticker := s.cfg.Clock.NewTicker(s.cfg.Params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			opsf("scheduler: stopping after %d ticks, %d published",
				s.ticks.Load(), s.published.Load())
			return ctx.Err()
		case now := <-ticker.C():
			s.Tick(now)
		}
	}
}

// Tick runs one loop iteration at the given wall time: predict over
// the elapsed interval, then drain and apply staged corrections in
// fastest-sensor-first order. The first tick predicts over dt = 0.
func (s *Scheduler) Tick(now time.Time) {
	var dt float64
	if s.hasTick {
		dt = now.Sub(s.lastTick).Seconds()
	}
	s.lastTick = now
	s.hasTick = true
	s.ticks.Add(1)

	if !s.cfg.Params.Enabled {
		return
	}

	f := s.cfg.Filter
	f.Predict(dt)

	stage := StagePrediction
	ran := map[Stage]bool{StagePrediction: true}

	if s.cfg.Params.EnableInertial {
		if m, ok := s.cfg.Staging.Inertial.Take(); ok {
			if err := f.CorrectInertial(m); err != nil {
				opsf("scheduler: %v", err)
			} else {
				stage = StageInertial
				ran[StageInertial] = true
			}
		}
	}
	if s.cfg.Params.EnableWheel {
		if m, ok := s.cfg.Staging.Wheel.Take(); ok {
			if err := f.CorrectWheel(m); err != nil {
				opsf("scheduler: %v", err)
			} else {
				stage = StageWheel
				ran[StageWheel] = true
			}
		}
	}
	if s.cfg.Params.EnableRange {
		if m, ok := s.cfg.Staging.Range.Take(); ok {
			if err := f.CorrectRange(m, s.cfg.PublishDerived); err != nil {
				opsf("scheduler: %v", err)
			} else {
				stage = StageRange
				ran[StageRange] = true
			}
		}
	}

	if s.cfg.Publish != nil && ran[s.cfg.Params.PublishTrigger] {
		s.cfg.Publish(f.Estimate(now, stage))
		s.published.Add(1)
	}
}

// Stats returns the loop counters. Safe to call from other
// goroutines.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:     s.ticks.Load(),
		Published: s.published.Load(),
	}
}
