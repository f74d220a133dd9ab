package subs

import (
	"context"
	"log"
	"strconv"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
	"github.com/lilendian0x00/nodeharvest/pkg/extract"
	"github.com/lilendian0x00/nodeharvest/pkg/fetch"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

type Subscription struct {
	Remark string
	Url    string
	Nodes  []node.Node
	// Rejected counts candidates that failed canonicalization.
	Rejected int
}

// FetchAll downloads the subscription and keeps every candidate that
// canonicalizes. Base64 bodies are decoded first.
func (s *Subscription) FetchAll(ctx context.Context, f fetch.Fetcher, canon *node.Canonicalizer) error {
	body, _, err := fetch.Get(ctx, f, s.Url)
	if err != nil {
		return err
	}

	s.Nodes = s.Nodes[:0]
	s.Rejected = 0
	for _, c := range extract.Candidates(string(body)) {
		n, err := canon.Parse(c)
		if err != nil {
			s.Rejected++
			continue
		}
		s.Nodes = append(s.Nodes, n)
	}
	return nil
}

func (s *Subscription) RemoveDuplicate(p node.Policy, verbose bool) {
	var removed int
	s.Nodes, removed = aggregate.Dedup(s.Nodes, p)
	if verbose {
		log.Printf("Removed %d duplicate nodes!\n", removed)
	}
}

// Links renders the nodes in canonical form, labelled by position.
func (s *Subscription) Links() []string {
	links := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		label := strconv.Itoa(i + 1)
		if s.Remark != "" {
			label = s.Remark + " " + label
		}
		links[i] = node.Render(n, label)
	}
	return links
}
