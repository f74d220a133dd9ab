// Package aggregate merges canonical nodes from many sources into one
// deduplicated set keyed by fingerprint.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

type Outcome uint8

const (
	New Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == New {
		return "new"
	}
	return "duplicate"
}

// Winner decides which variant of a fingerprint survives.
type Winner string

const (
	FirstSeen     Winner = "first"
	LowestLatency Winner = "latency"
)

// Entry is the surviving record for one fingerprint.
type Entry struct {
	Fingerprint node.Fingerprint
	Node        node.Node
	// Latency is zero until a probe reports a reachable result.
	Latency time.Duration
	Probed  bool
	Alive   bool
	// variants holds later arrivals with different transport params, kept
	// only under LowestLatency so the prober can race them.
	variants []node.Node
}

// Candidates returns the surviving node followed by any retained variants.
func (e *Entry) Candidates() []node.Node {
	out := make([]node.Node, 0, 1+len(e.variants))
	out = append(out, e.Node)
	return append(out, e.variants...)
}

type Store struct {
	mu          sync.Mutex
	entries     map[node.Fingerprint]*Entry
	order       []node.Fingerprint
	winner      Winner
	maxVariants int
	duplicates  int
}

type Option func(*Store)

func WithWinner(w Winner) Option {
	return func(s *Store) {
		if w != "" {
			s.winner = w
		}
	}
}

// WithMaxVariants bounds the alternates kept per fingerprint under LowestLatency.
func WithMaxVariants(n int) Option {
	return func(s *Store) { s.maxVariants = n }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:     make(map[node.Fingerprint]*Entry),
		winner:      FirstSeen,
		maxVariants: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert stores n under fp unless fp is already present. The check and the
// insert happen under one lock, so concurrent producers never both see New.
func (s *Store) Insert(fp node.Fingerprint, n node.Node) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[fp]; ok {
		s.duplicates++
		if s.winner == LowestLatency && len(e.variants) < s.maxVariants && !sameRendering(e, n) {
			e.variants = append(e.variants, n)
		}
		return Duplicate
	}
	s.entries[fp] = &Entry{Fingerprint: fp, Node: n}
	s.order = append(s.order, fp)
	return New
}

func sameRendering(e *Entry, n node.Node) bool {
	r := node.Render(n, "")
	if node.Render(e.Node, "") == r {
		return true
	}
	for _, v := range e.variants {
		if node.Render(v, "") == r {
			return true
		}
	}
	return false
}

// Offer records a probe result for one candidate of fp. The first alive
// result is kept; under LowestLatency a faster result replaces it.
func (s *Store) Offer(fp node.Fingerprint, n node.Node, latency time.Duration, alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fp]
	if !ok {
		return
	}
	e.Probed = true
	if !alive {
		return
	}
	if !e.Alive || (s.winner == LowestLatency && latency < e.Latency) {
		e.Node = n
		e.Latency = latency
		e.Alive = true
	}
}

// Prune removes every probed entry without a reachable result and returns
// how many were dropped.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	dropped := 0
	for _, fp := range s.order {
		e := s.entries[fp]
		if e.Probed && !e.Alive {
			delete(s.entries, fp)
			dropped++
			continue
		}
		kept = append(kept, fp)
	}
	s.order = kept
	return dropped
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Duplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicates
}

// Entries returns a snapshot in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.order))
	for _, fp := range s.order {
		e := *s.entries[fp]
		e.variants = append([]node.Node(nil), e.variants...)
		out = append(out, e)
	}
	return out
}

// Dedup is the per-source pass: it keeps the first node of every
// fingerprint and reports how many were dropped.
func Dedup(nodes []node.Node, p node.Policy) ([]node.Node, int) {
	seen := make(map[node.Fingerprint]struct{}, len(nodes))
	out := make([]node.Node, 0, len(nodes))
	for _, n := range nodes {
		fp := node.FingerprintOf(n, p)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, n)
	}
	return out, len(nodes) - len(out)
}

// Sort orders entries and their label-free renderings in place: by protocol,
// reachable before unreachable, then latency when byLatency is set,
// otherwise by rendering alone. The
// rendering breaks ties so the order is total.
func Sort(entries []Entry, rendered []string, byLatency bool) {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := entries[idx[a]], entries[idx[b]]
		if byLatency {
			if pa, pb := protoRank(ea.Node.Protocol()), protoRank(eb.Node.Protocol()); pa != pb {
				return pa < pb
			}
			if ea.Alive != eb.Alive {
				return ea.Alive
			}
			if ea.Latency != eb.Latency {
				return ea.Latency < eb.Latency
			}
		}
		return rendered[idx[a]] < rendered[idx[b]]
	})

	e2 := make([]Entry, len(entries))
	r2 := make([]string, len(rendered))
	for i, j := range idx {
		e2[i], r2[i] = entries[j], rendered[j]
	}
	copy(entries, e2)
	copy(rendered, r2)
}

func protoRank(p node.Protocol) int {
	for i, q := range node.Protocols {
		if q == p {
			return i
		}
	}
	return len(node.Protocols)
}
