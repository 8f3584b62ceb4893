package fusion

import (
	"sync"
	"sync/atomic"
)

// Slot is a latest-value mailbox for one sensor stream. A producer
// goroutine overwrites the slot on every arrival; the scheduler takes
// the value at most once per tick. The mutex makes the write and the
// read-and-clear genuine critical sections so the consumer always sees
// the producer's latest complete record.
type Slot[T any] struct {
	mu    sync.Mutex
	value T
	fresh bool

	puts    atomic.Uint64
	takes   atomic.Uint64
	dropped atomic.Uint64
}

// Put stores v as the latest measurement and marks the slot fresh. An
// unconsumed previous value counts as dropped.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	if s.fresh {
		s.dropped.Add(1)
	}
	s.value = v
	s.fresh = true
	s.mu.Unlock()
	s.puts.Add(1)
}

// Take returns the staged value and clears the freshness flag. The
// second return is false when nothing fresh is staged.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		var zero T
		return zero, false
	}
	s.fresh = false
	s.takes.Add(1)
	return s.value, true
}

// Fresh reports whether an unconsumed value is staged.
func (s *Slot[T]) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh
}

// Stats returns the slot counters.
func (s *Slot[T]) Stats() SlotStats {
	return SlotStats{
		Puts:    s.puts.Load(),
		Takes:   s.takes.Load(),
		Dropped: s.dropped.Load(),
	}
}

// SlotStats counts slot traffic. Dropped counts fresh values that were
// overwritten before the scheduler consumed them, which is expected
// whenever a sensor outpaces its correction.
type SlotStats struct {
	Puts    uint64 `json:"puts"`
	Takes   uint64 `json:"takes"`
	Dropped uint64 `json:"dropped"`
}

// Staging holds the per-sensor measurement slots shared between ingest
// producers and the scheduler.
type Staging struct {
	Inertial Slot[InertialMeasurement]
	Wheel    Slot[WheelMeasurement]
	Range    Slot[RangeMeasurement]
}

// NewStaging returns an empty staging area.
func NewStaging() *Staging {
	return &Staging{}
}

// Stats snapshots all slot counters.
func (s *Staging) Stats() StagingStats {
	return StagingStats{
		Inertial: s.Inertial.Stats(),
		Wheel:    s.Wheel.Stats(),
		Range:    s.Range.Stats(),
	}
}

// StagingStats aggregates the per-sensor slot counters.
type StagingStats struct {
	Inertial SlotStats `json:"inertial"`
	Wheel    SlotStats `json:"wheel"`
	Range    SlotStats `json:"range"`
}
