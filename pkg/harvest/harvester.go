// Package harvest runs the source-to-store pipeline: fetch, decode, extract,
// canonicalize, local dedup and global merge.
package harvest

import (
	"context"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
	"github.com/lilendian0x00/nodeharvest/pkg/extract"
	"github.com/lilendian0x00/nodeharvest/pkg/fetch"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

const (
	StatusSuccess = "Success"
	StatusFail    = "Fail"
	StatusSkipped = "Skipped"
)

// SourceResult is one row of the per-source statistics.
type SourceResult struct {
	Source     string `csv:"Source"`
	Proto      string `csv:"Proto"`
	Count      int    `csv:"Count"`
	Status     string `csv:"Status"`
	Candidates int    `csv:"Candidates"`
	Accepted   int    `csv:"Accepted"`
	Rejected   int    `csv:"Rejected"`
	Duplicates int    `csv:"Duplicates"`
	Protocols  string `csv:"Protocols"`
	ElapsedMS  int64  `csv:"ElapsedMS"`
	Reason     string `csv:"Reason,omitempty"`
}

// Report summarises a run. A run that yields nothing is still a valid report.
type Report struct {
	Sources     []SourceResult
	Attempted   int
	Unreachable int
	Candidates  int
	Accepted    int
	Rejected    int
	Duplicates  int
	Unique      int
}

type Options struct {
	Threads     int
	Policy      node.Policy
	Winner      aggregate.Winner
	MaxVariants int
}

type Harvester struct {
	fetcher fetch.Fetcher
	canon   *node.Canonicalizer
	store   *aggregate.Store
	threads int
	logger  *log.Logger
	// OnSource is called once per finished source, from worker goroutines.
	OnSource func(SourceResult)
}

func New(f fetch.Fetcher, opts Options, logger *log.Logger) *Harvester {
	if opts.Threads <= 0 {
		opts.Threads = 32
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	storeOpts := []aggregate.Option{aggregate.WithWinner(opts.Winner)}
	if opts.MaxVariants > 0 {
		storeOpts = append(storeOpts, aggregate.WithMaxVariants(opts.MaxVariants))
	}
	return &Harvester{
		fetcher: f,
		canon:   node.NewCanonicalizer(opts.Policy),
		store:   aggregate.NewStore(storeOpts...),
		threads: opts.Threads,
		logger:  logger,
	}
}

func (h *Harvester) Store() *aggregate.Store {
	return h.store
}

func (h *Harvester) Canonicalizer() *node.Canonicalizer {
	return h.canon
}

// Run processes every source on a bounded pool, one task per source. A
// failing or slow source only affects its own row.
func (h *Harvester) Run(ctx context.Context, sources []string) (Report, error) {
	results := make([]SourceResult, len(sources))
	for i, src := range sources {
		results[i] = SourceResult{Source: src, Status: StatusSkipped}
	}
	h.logger.Printf("Harvesting %d sources with %d threads...", len(sources), h.threads)

	pool := pond.NewPool(h.threads)
	group := pool.NewGroupContext(ctx)

	for i, src := range sources {
		idx, source := i, src
		group.Submit(func() {
			res := h.fetchAndProcess(group.Context(), source)
			results[idx] = res
			if h.OnSource != nil {
				h.OnSource(res)
			}
		})
	}
	err := group.Wait()
	// Wait returns early on cancellation; drain running tasks before reading results.
	pool.StopAndWait()

	return h.report(results), err
}

func (h *Harvester) fetchAndProcess(ctx context.Context, source string) SourceResult {
	start := time.Now()
	body, scheme, err := fetch.Get(ctx, h.fetcher, source)
	if err != nil {
		h.logger.Printf("Fetch failed: %s: %v", source, err)
		return SourceResult{
			Source:    source,
			Proto:     "None",
			Status:    StatusFail,
			Reason:    err.Error(),
			ElapsedMS: time.Since(start).Milliseconds(),
		}
	}
	res := h.Process(source, string(body))
	res.Proto = scheme
	res.ElapsedMS = time.Since(start).Milliseconds()
	h.logger.Printf("Done: %s | Unique: %d", source, res.Count)
	return res
}

// Process runs one already-fetched document through the pipeline and
// merges the survivors into the store.
func (h *Harvester) Process(source, body string) SourceResult {
	res := SourceResult{Source: source, Status: StatusSuccess}

	candidates := extract.Candidates(body)
	res.Candidates = len(candidates)

	nodes := make([]node.Node, 0, len(candidates))
	reasons := make(map[string]int)
	for _, c := range candidates {
		n, err := h.canon.Parse(c)
		if err != nil {
			reasons[node.ReasonOf(err).String()]++
			continue
		}
		nodes = append(nodes, n)
	}
	res.Accepted = len(nodes)
	res.Rejected = len(candidates) - len(nodes)
	res.Reason = formatCounts(reasons)

	nodes, localDups := aggregate.Dedup(nodes, h.canon.Policy())
	res.Duplicates = localDups

	protos := make(map[string]int)
	for _, n := range nodes {
		if h.store.Insert(h.canon.Fingerprint(n), n) == aggregate.New {
			res.Count++
			protos[string(n.Protocol())]++
		} else {
			res.Duplicates++
		}
	}
	res.Protocols = formatCounts(protos)
	return res
}

func (h *Harvester) report(results []SourceResult) Report {
	r := Report{Sources: results, Attempted: len(results), Unique: h.store.Len()}
	for _, s := range results {
		if s.Status != StatusSuccess {
			r.Unreachable++
		}
		r.Candidates += s.Candidates
		r.Accepted += s.Accepted
		r.Rejected += s.Rejected
		r.Duplicates += s.Duplicates
	}
	return r
}

// formatCounts renders a count map as "a:1;b:2" with sorted keys.
func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+":"+strconv.Itoa(v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
