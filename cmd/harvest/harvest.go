package harvest

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
	"github.com/lilendian0x00/nodeharvest/pkg/config"
	"github.com/lilendian0x00/nodeharvest/pkg/fetch"
	pkgharvest "github.com/lilendian0x00/nodeharvest/pkg/harvest"
	"github.com/lilendian0x00/nodeharvest/pkg/probe"
	"github.com/lilendian0x00/nodeharvest/utils"
	"github.com/lilendian0x00/nodeharvest/utils/customlog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// HarvestCmd represents the harvest command
var HarvestCmd = newHarvestCommand()

// Config holds all command configuration options
type Config struct {
	ConfigFile  string
	SourcesFile string
	OutputFile  string
	StatsFile   string
	ArchiveDir  string
	ThreadCount uint16
	Transport   string
	Timeout     time.Duration
	Insecure    bool
	Winner      string
	Probe       bool
	ProbeMethod string
	ProbeThread uint16
	KeepDead    bool
	Verbose     bool
}

// validateConfig validates the configuration options
func validateConfig(cfg *Config, args []string) error {
	if cfg.SourcesFile == "" && len(args) == 0 {
		return fmt.Errorf("no sources given. Use --input or pass source urls as arguments")
	}

	validWinners := map[string]bool{string(aggregate.FirstSeen): true, string(aggregate.LowestLatency): true}
	if !validWinners[cfg.Winner] {
		return fmt.Errorf("invalid winner. Available winners: (first, latency)")
	}

	validMethods := map[string]bool{probe.MethodTCP: true, probe.MethodICMP: true}
	if !validMethods[cfg.ProbeMethod] {
		return fmt.Errorf("invalid probe method. Available methods: (tcp, icmp)")
	}

	validTransports := map[string]bool{fetch.TransportReq: true, fetch.TransportUTLS: true}
	if !validTransports[cfg.Transport] {
		return fmt.Errorf("invalid transport. Available transports: (req, utls)")
	}
	return nil
}

// newHarvestCommand creates and returns the harvest command
func newHarvestCommand() *cobra.Command {
	config := &Config{}

	cmd := &cobra.Command{
		Use:   "harvest [source urls...]",
		Short: "Fetch every source, canonicalize the node links and write the deduplicated set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConfig(config, args); err != nil {
				return err
			}
			fileCfg, err := loadConfig(cmd, config)
			if err != nil {
				return err
			}
			sources, err := loadSources(config.SourcesFile, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, fileCfg, sources, config.Verbose)
		},
	}

	addFlags(cmd, config)
	return cmd
}

// loadConfig reads the optional YAML file and lets explicitly set flags
// override it.
func loadConfig(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	fileCfg, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cmd, cfg, fileCfg)
	return fileCfg, nil
}

func applyOverrides(cmd *cobra.Command, cfg *Config, fc *config.Config) {
	changed := cmd.Flags().Changed
	if changed("out") {
		fc.Output.Path = cfg.OutputFile
	}
	if changed("stats") {
		fc.Output.Stats = cfg.StatsFile
	}
	if changed("archive") {
		fc.Output.Archive = cfg.ArchiveDir
	}
	if changed("thread") {
		fc.Threads = int(cfg.ThreadCount)
	}
	if changed("transport") {
		fc.Fetch.Transport = cfg.Transport
	}
	if changed("timeout") {
		fc.Fetch.Timeout = cfg.Timeout.String()
	}
	if changed("insecure") {
		fc.Fetch.Insecure = cfg.Insecure
	}
	if changed("winner") {
		fc.Policy.Winner = cfg.Winner
	}
	if changed("probe") {
		fc.Probe.Enabled = cfg.Probe
	}
	if changed("method") {
		fc.Probe.Method = cfg.ProbeMethod
	}
	if changed("pthread") {
		fc.Probe.Threads = int(cfg.ProbeThread)
	}
	if changed("keep-dead") {
		fc.Probe.Prune = !cfg.KeepDead
	}
}

// loadSources merges the sources file with positional arguments, keeping
// the first occurrence of each locator.
func loadSources(file string, args []string) ([]string, error) {
	var sources []string
	if file != "" {
		lines, err := utils.ParseFileByNewline(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources: %w", err)
		}
		sources = append(sources, lines...)
	}
	sources = append(sources, args...)

	seen := make(map[string]bool, len(sources))
	out := sources[:0]
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func run(ctx context.Context, cfg *config.Config, sources []string, verbose bool) error {
	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	fetcher, err := fetch.New(cfg.FetcherConfig())
	if err != nil {
		return err
	}
	if c, ok := fetcher.(interface{ Close() }); ok {
		defer c.Close()
	}

	h := pkgharvest.New(fetcher, pkgharvest.Options{
		Threads:     cfg.Threads,
		Policy:      cfg.NodePolicy(),
		Winner:      aggregate.Winner(cfg.Policy.Winner),
		MaxVariants: cfg.Policy.MaxVariants,
	}, logger)
	h.OnSource = func(r pkgharvest.SourceResult) {
		if r.Status == pkgharvest.StatusSuccess {
			customlog.Printf(customlog.Success, "%s | %s | new: %d, rejected: %d, duplicates: %d\n",
				r.Source, r.Proto, r.Count, r.Rejected, r.Duplicates)
			return
		}
		customlog.Printf(customlog.Failure, "%s | %s\n", r.Source, r.Reason)
	}

	printConfiguration(cfg, len(sources))
	report, err := h.Run(ctx, sources)
	if err != nil {
		customlog.Printf(customlog.Warning, "Harvest interrupted: %v\n", err)
	}

	probed := false
	if cfg.Probe.Enabled && ctx.Err() == nil {
		prober, err := probe.New(cfg.Probe.Method, cfg.GetProbeTimeout())
		if err != nil {
			return err
		}
		customlog.Printf(customlog.Processing, "Probing %d endpoints (%s)...\n", h.Store().Len(), cfg.Probe.Method)
		summary, err := probe.NewRunner(prober, cfg.Probe.Threads, logger).Run(ctx, h.Store())
		if err != nil {
			customlog.Printf(customlog.Warning, "Probe interrupted: %v\n", err)
		}
		probed = true
		customlog.Printf(customlog.Info, "Alive: %d/%d\n", summary.Alive, summary.Probed)
		if summary.Skipped > 0 {
			customlog.Printf(customlog.Warning, "Skipped %d endpoints %s cannot test\n", summary.Skipped, cfg.Probe.Method)
		}
		if cfg.Probe.Prune {
			customlog.Printf(customlog.Info, "Dropped %d unreachable nodes\n", h.Store().Prune())
		}
	}

	lines := pkgharvest.RenderEntries(h.Store().Entries(), probed)
	out := pkgharvest.Output{Path: cfg.Output.Path, StatsPath: cfg.Output.Stats, ArchiveDir: cfg.Output.Archive}
	written, err := out.Write(lines, report.Sources, time.Now())
	if err != nil {
		return err
	}

	printReport(report, len(lines))
	for _, path := range written {
		customlog.Printf(customlog.Finished, "Saved %s\n", path)
	}
	return nil
}

// printConfiguration prints the current configuration
func printConfiguration(cfg *config.Config, totalSources int) {
	fmt.Fprintf(os.Stderr, "%s: %d\n%s: %d\n%s: %s\n%s: %s\n%s: %s\n%s: %t\n%s: %s\n\n",
		color.RedString("Total sources"), totalSources,
		color.RedString("Thread count"), cfg.Threads,
		color.RedString("Transport"), cfg.FetcherConfig().Transport,
		color.RedString("Fetch timeout"), cfg.GetFetchTimeout(),
		color.RedString("Winner"), cfg.Policy.Winner,
		color.RedString("Probe"), cfg.Probe.Enabled,
		color.RedString("Output"), cfg.Output.Path)
}

func printReport(r pkgharvest.Report, written int) {
	customlog.Printf(customlog.Info, "Sources: %d (unreachable: %d)\n", r.Attempted, r.Unreachable)
	customlog.Printf(customlog.Info, "Candidates: %d | Accepted: %d | Rejected: %d | Duplicates: %d\n",
		r.Candidates, r.Accepted, r.Rejected, r.Duplicates)
	if written == 0 {
		customlog.Printf(customlog.Warning, "No nodes found\n")
		return
	}
	customlog.Printf(customlog.Success, "Unique nodes: %d (written: %d)\n", r.Unique, written)
}

// addFlags adds all command-line flags to the command
func addFlags(cmd *cobra.Command, config *Config) {
	flags := cmd.Flags()
	flags.StringVar(&config.ConfigFile, "config", "", "YAML configuration file")
	flags.StringVarP(&config.SourcesFile, "input", "i", "", "File with one source url per line")
	flags.StringVarP(&config.OutputFile, "out", "o", "latest_nodes.txt", "Output file for node links. - means stdout")
	flags.StringVarP(&config.StatsFile, "stats", "s", "", "Write per-source statistics as CSV")
	flags.StringVarP(&config.ArchiveDir, "archive", "a", "", "Also keep a monthly archive copy under this directory")
	flags.Uint16VarP(&config.ThreadCount, "thread", "t", 32, "Number of sources fetched concurrently")
	flags.StringVarP(&config.Transport, "transport", "x", fetch.TransportReq, "Fetch transport (req, utls)")
	flags.DurationVarP(&config.Timeout, "timeout", "d", 15*time.Second, "Per-source fetch timeout")
	flags.BoolVarP(&config.Insecure, "insecure", "e", false, "Skip TLS certificate verification")
	flags.StringVarP(&config.Winner, "winner", "w", string(aggregate.FirstSeen), "Which duplicate survives (first, latency)")
	flags.BoolVarP(&config.Probe, "probe", "p", false, "Probe every endpoint and sort by latency")
	flags.StringVarP(&config.ProbeMethod, "method", "m", probe.MethodTCP, "Probe method (tcp, icmp)")
	flags.Uint16Var(&config.ProbeThread, "pthread", 64, "Number of concurrent probes")
	flags.BoolVar(&config.KeepDead, "keep-dead", false, "Keep unreachable nodes after probing")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose")
}
