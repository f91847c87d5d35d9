// Package stats accumulates per-object outcomes into run-level counters.
package stats

import (
	"sync/atomic"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/transfer"
)

// Tracker is the single owner of the run counters. Recording is atomic so
// results may arrive from any worker in any order; reads for live progress
// are eventually consistent.
type Tracker struct {
	total   atomic.Uint64
	copied  atomic.Uint64
	skipped atomic.Uint64
	errors  atomic.Uint64
}

// Summary is the final report for one run.
type Summary struct {
	Total       uint64
	Copied      uint64
	Skipped     uint64
	Errors      uint64
	Interrupted bool
	// NotProcessed is the count of objects never dispatched or abandoned
	// before any work was done. Meaningful only when Interrupted.
	NotProcessed uint64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// SetTotal records the inventory size before any transfers start.
func (t *Tracker) SetTotal(n uint64) {
	t.total.Store(n)
}

// Record folds one outcome into the counters. An interrupted outcome
// increments nothing: the work was never performed and must not be counted
// against the total.
func (t *Tracker) Record(r transfer.Result) {
	switch r.Status {
	case transfer.Copied:
		t.copied.Add(1)
	case transfer.Skipped:
		t.skipped.Add(1)
	case transfer.Failed:
		t.errors.Add(1)
	case transfer.Interrupted:
	}
}

// Processed returns how many outcomes have been recorded so far.
func (t *Tracker) Processed() uint64 {
	return t.copied.Load() + t.skipped.Load() + t.errors.Load()
}

// Finalize computes the run summary. The not-processed deficit is reported
// only for interrupted runs; a clean run always processes everything.
func (t *Tracker) Finalize(interrupted bool) Summary {
	s := Summary{
		Total:       t.total.Load(),
		Copied:      t.copied.Load(),
		Skipped:     t.skipped.Load(),
		Errors:      t.errors.Load(),
		Interrupted: interrupted,
	}
	if interrupted {
		s.NotProcessed = s.Total - (s.Copied + s.Skipped + s.Errors)
	}
	return s
}
