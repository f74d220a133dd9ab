package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/utils"
)

// Label is the display name given to the i-th output line (zero based).
func Label(i int, e aggregate.Entry, probed bool) string {
	label := strconv.Itoa(i + 1)
	if probed && e.Alive {
		label += " | " + strconv.FormatInt(e.Latency.Milliseconds(), 10) + "ms"
	}
	return label
}

// RenderEntries sorts entries deterministically and renders each with its
// label. Sorting uses the label-free rendering, or protocol then latency
// when probed, so the order never depends on arrival order.
func RenderEntries(entries []aggregate.Entry, probed bool) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = node.Render(e.Node, "")
	}
	aggregate.Sort(entries, keys, probed)

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = node.Render(e.Node, Label(i, e, probed))
	}
	return lines
}

// Output describes where a run's results go.
type Output struct {
	// Path receives the newline-delimited links. "-" writes to stdout.
	Path string
	// StatsPath receives the per-source CSV. Empty disables it.
	StatsPath string
	// ArchiveDir, when set, also stores both files under ArchiveDir/YYYY-MM/.
	ArchiveDir string
}

// Write stores lines and stats, returning every file written.
func (o Output) Write(lines []string, stats []SourceResult, now time.Time) ([]string, error) {
	data := []byte(strings.Join(lines, "\n"))
	if len(lines) > 0 {
		data = append(data, '\n')
	}

	var written []string
	if o.Path != "" {
		if err := writeFile(o.Path, data); err != nil {
			return written, fmt.Errorf("failed to save nodes: %w", err)
		}
		written = append(written, o.Path)
	}
	if o.StatsPath != "" {
		if err := WriteStats(o.StatsPath, stats); err != nil {
			return written, err
		}
		written = append(written, o.StatsPath)
	}

	if o.ArchiveDir == "" {
		return written, nil
	}
	monthDir := filepath.Join(o.ArchiveDir, now.Format("2006-01"))
	if err := os.MkdirAll(monthDir, 0755); err != nil {
		return written, fmt.Errorf("failed to create archive dir: %w", err)
	}
	ts := now.Format("20060102_150405")
	nodesPath := filepath.Join(monthDir, "nodes_"+ts+".txt")
	if err := utils.WriteIntoFile(nodesPath, data); err != nil {
		return written, fmt.Errorf("failed to archive nodes: %w", err)
	}
	written = append(written, nodesPath)

	statsPath := filepath.Join(monthDir, "stats_"+ts+".csv")
	if err := WriteStats(statsPath, stats); err != nil {
		return written, err
	}
	return append(written, statsPath), nil
}

// WriteStats marshals the per-source rows, busiest sources first.
func WriteStats(path string, stats []SourceResult) error {
	rows := append([]SourceResult(nil), stats...)
	sortStats(rows)
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return fmt.Errorf("failed to marshal CSV: %w", err)
	}
	if err := writeFile(path, []byte(out)); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

func sortStats(rows []SourceResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Source < rows[j].Source
	})
}

func writeFile(path string, data []byte) error {
	if path != "-" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return utils.WriteIntoFile(path, data)
}
