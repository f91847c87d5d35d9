// Package worker bounds how many transfers run at once. The descriptor
// sequence is partitioned into batches so that a stop request takes effect
// at a predictable boundary and pending work never grows without limit.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/inventory"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/transfer"
)

// batchFactor scales the batch size from the concurrency limit. Three
// batches' worth of descriptors keeps the pipeline saturated while a batch
// drains.
const batchFactor = 3

// TransferFunc performs one transfer.
type TransferFunc func(ctx context.Context, d inventory.Descriptor) transfer.Result

// Pool dispatches transfers with bounded concurrency.
type Pool struct {
	concurrency int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func NewPool(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency}
}

// Run executes do for every descriptor, at most concurrency at a time.
// stopped is polled before each batch; once it reports true no further
// batch is admitted, while transfers already admitted drain normally.
// onResult is invoked serially, in completion order.
func (p *Pool) Run(ctx context.Context, descs []inventory.Descriptor, stopped func() bool, do TransferFunc, onResult func(transfer.Result)) {
	if stopped == nil {
		stopped = func() bool { return false }
	}

	batchSize := p.concurrency * batchFactor
	var mu sync.Mutex

	for start := 0; start < len(descs); start += batchSize {
		if stopped() {
			return
		}

		end := start + batchSize
		if end > len(descs) {
			end = len(descs)
		}

		g := new(errgroup.Group)
		g.SetLimit(p.concurrency)
		for _, d := range descs[start:end] {
			d := d
			g.Go(func() error {
				p.trackAcquire()
				defer p.inFlight.Add(-1)

				result := do(ctx, d)

				mu.Lock()
				onResult(result)
				mu.Unlock()
				return nil
			})
		}
		// Transfers never fail through the group; their outcome travels
		// in the Result. Wait only delimits the batch.
		_ = g.Wait()
	}
}

func (p *Pool) trackAcquire() {
	n := p.inFlight.Add(1)
	for {
		max := p.maxInFlight.Load()
		if n <= max || p.maxInFlight.CompareAndSwap(max, n) {
			return
		}
	}
}

// InFlight returns the number of transfers currently holding a slot.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

// MaxInFlight returns the highest concurrency observed during the run.
func (p *Pool) MaxInFlight() int64 {
	return p.maxInFlight.Load()
}
