// Package interrupt implements the two-tier shutdown used during bulk
// transfers. The first signal only stops new work from being admitted;
// in-flight transfers drain so no destination object is left half written.
// A second signal escalates to immediate termination, giving the operator a
// way out when a large transfer makes the graceful path feel unresponsive.
package interrupt

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// Handler tracks interrupt state for one run.
type Handler struct {
	stopped atomic.Bool
	onSoft  func()
	onForce func()
}

// New creates a Handler. onSoft runs once on the first signal (may be nil);
// onForce runs on the second signal and must not return; the CLI passes a
// function that exits the process.
func New(onSoft, onForce func()) *Handler {
	if onForce == nil {
		onForce = func() { os.Exit(130) }
	}
	return &Handler{onSoft: onSoft, onForce: onForce}
}

// Notify installs the signal handler. The returned stop function releases
// the signal registration.
func (h *Handler) Notify(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	go func() {
		for range ch {
			if h.stopped.CompareAndSwap(false, true) {
				if h.onSoft != nil {
					h.onSoft()
				}
				continue
			}
			h.onForce()
		}
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// Stopped reports whether a soft stop has been requested. Components poll
// this before admitting or starting new work; it never cancels work already
// in flight.
func (h *Handler) Stopped() bool {
	return h.stopped.Load()
}

// Trigger performs the same transition as an incoming signal. It exists for
// the engine's own use (tests, programmatic shutdown).
func (h *Handler) Trigger() {
	if h.stopped.CompareAndSwap(false, true) {
		if h.onSoft != nil {
			h.onSoft()
		}
		return
	}
	h.onForce()
}
