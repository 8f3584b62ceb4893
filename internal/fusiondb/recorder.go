package fusiondb

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/cwon789/adaptive-filter/internal/monitoring"
	"github.com/cwon789/adaptive-filter/internal/publish"
)

// Recorder persists the estimator output stream under one run.
type Recorder struct {
	db    *DB
	runID string

	estimates    atomic.Uint64
	derived      atomic.Uint64
	insertErrors atomic.Uint64
}

// RecorderStats is a snapshot of recorder counters.
type RecorderStats struct {
	RunID     string `json:"run_id"`
	Estimates uint64 `json:"estimates"`
	Derived   uint64 `json:"derived"`
	Errors    uint64 `json:"errors"`
}

// NewRecorder creates a recorder writing to the given run.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string {
	return r.runID
}

// Run consumes events from the subscription until ctx is cancelled or
// the subscription is closed.
func (r *Recorder) Run(ctx context.Context, sub *publish.Subscriber) error {
	log.Printf("Recorder storing run %s", r.runID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			r.record(ev)
		}
	}
}

func (r *Recorder) record(ev publish.Event) {
	switch {
	case ev.Estimate != nil:
		if err := r.db.InsertEstimate(r.runID, *ev.Estimate); err != nil {
			r.countError(err)
			return
		}
		r.estimates.Add(1)
	case ev.Derived != nil:
		if err := r.db.InsertDerivedTwist(r.runID, *ev.Derived); err != nil {
			r.countError(err)
			return
		}
		r.derived.Add(1)
	}
}

func (r *Recorder) countError(err error) {
	n := r.insertErrors.Add(1)
	if n%100 == 1 {
		monitoring.Logf("Recorder insert failed (%d so far): %v", n, err)
	}
}

// Stats returns a snapshot of the recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		RunID:     r.runID,
		Estimates: r.estimates.Load(),
		Derived:   r.derived.Load(),
		Errors:    r.insertErrors.Load(),
	}
}
