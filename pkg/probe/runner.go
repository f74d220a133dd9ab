package probe

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
)

// Runner probes every fingerprint in a store on its own bounded pool.
type Runner struct {
	prober  Prober
	threads int
	logger  *log.Logger
}

func NewRunner(p Prober, threads int, logger *log.Logger) *Runner {
	if threads <= 0 {
		threads = 64
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{prober: p, threads: threads, logger: logger}
}

// Summary counts probe outcomes per fingerprint. Skipped entries had no
// candidate the prober could test and are left unmarked.
type Summary struct {
	Probed  int
	Alive   int
	Skipped int
}

// Run submits one task per fingerprint and records every candidate's
// result through store.Offer. Unreachable entries stay in the store marked
// as probed; callers decide whether to Prune. Candidates the prober reports
// as ErrUnsupported are not recorded, so Prune keeps them.
func (r *Runner) Run(ctx context.Context, store *aggregate.Store) (Summary, error) {
	entries := store.Entries()
	r.logger.Printf("Probing %d endpoints with %d threads...", len(entries), r.threads)

	pool := pond.NewPool(r.threads)
	group := pool.NewGroupContext(ctx)

	var alive, skipped atomic.Int64
	for _, e := range entries {
		entry := e
		group.Submit(func() {
			ok, tested := false, false
			for _, cand := range entry.Candidates() {
				latency, err := r.prober.Probe(group.Context(), cand.Endpoint())
				if errors.Is(err, ErrUnsupported) {
					r.logger.Printf("%s skipped: %v", cand.Endpoint(), err)
					continue
				}
				tested = true
				store.Offer(entry.Fingerprint, cand, latency, err == nil)
				if err != nil {
					r.logger.Printf("%s unreachable: %v", cand.Endpoint(), err)
					continue
				}
				ok = true
			}
			switch {
			case ok:
				alive.Add(1)
			case !tested:
				skipped.Add(1)
			}
		})
	}

	err := group.Wait()
	pool.StopAndWait()
	s := int(skipped.Load())
	return Summary{Probed: len(entries) - s, Alive: int(alive.Load()), Skipped: s}, err
}
