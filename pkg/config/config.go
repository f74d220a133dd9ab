// Package config loads the YAML run configuration shared by the CLI commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lilendian0x00/nodeharvest/pkg/aggregate"
	"github.com/lilendian0x00/nodeharvest/pkg/fetch"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/pkg/probe"
)

// Config is the root of a harvest.yaml file.
type Config struct {
	Threads int          `yaml:"threads"`
	Policy  PolicyConfig `yaml:"policy"`
	Fetch   FetchConfig  `yaml:"fetch"`
	Probe   ProbeConfig  `yaml:"probe"`
	Output  OutputConfig `yaml:"output"`
}

// PolicyConfig configures canonicalization and merging.
type PolicyConfig struct {
	MinLength                int      `yaml:"min_length"`
	PlaceholderHosts         []string `yaml:"placeholder_hosts"`
	SSIdentityIncludesCipher bool     `yaml:"ss_identity_includes_cipher"`
	RejectLabelKeywords      []string `yaml:"reject_label_keywords"`
	Winner                   string   `yaml:"winner"` // first, latency
	MaxVariants              int      `yaml:"max_variants"`
}

// FetchConfig configures source retrieval.
type FetchConfig struct {
	Timeout   string `yaml:"timeout"`
	Retries   int    `yaml:"retries"`
	UserAgent string `yaml:"user_agent"`
	Transport string `yaml:"transport"` // req, utls
	Insecure  bool   `yaml:"insecure"`
	MaxBody   int64  `yaml:"max_body"`
}

// ProbeConfig configures the optional liveness pass.
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Method  string `yaml:"method"` // tcp, icmp
	Timeout string `yaml:"timeout"`
	Threads int    `yaml:"threads"`
	Prune   bool   `yaml:"prune"`
}

// OutputConfig configures where results are written.
type OutputConfig struct {
	Path    string `yaml:"path"`
	Stats   string `yaml:"stats"`
	Archive string `yaml:"archive"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := node.DefaultPolicy()
	f := fetch.DefaultConfig()
	return &Config{
		Threads: 32,
		Policy: PolicyConfig{
			MinLength:           p.MinLength,
			PlaceholderHosts:    p.PlaceholderHosts,
			RejectLabelKeywords: p.RejectLabelKeywords,
			Winner:              string(aggregate.FirstSeen),
			MaxVariants:         3,
		},
		Fetch: FetchConfig{
			Timeout:   f.Timeout.String(),
			Retries:   f.Retries,
			UserAgent: f.UserAgent,
			Transport: f.Transport,
			MaxBody:   f.MaxBody,
		},
		Probe: ProbeConfig{
			Method:  probe.MethodTCP,
			Timeout: "5s",
			Threads: 64,
			Prune:   true,
		},
		Output: OutputConfig{
			Path: "latest_nodes.txt",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch aggregate.Winner(c.Policy.Winner) {
	case "", aggregate.FirstSeen, aggregate.LowestLatency:
	default:
		return fmt.Errorf("policy.winner must be %q or %q, got %q", aggregate.FirstSeen, aggregate.LowestLatency, c.Policy.Winner)
	}
	switch c.Fetch.Transport {
	case "", fetch.TransportReq, fetch.TransportUTLS:
	default:
		return fmt.Errorf("fetch.transport must be %q or %q, got %q", fetch.TransportReq, fetch.TransportUTLS, c.Fetch.Transport)
	}
	switch c.Probe.Method {
	case "", probe.MethodTCP, probe.MethodICMP:
	default:
		return fmt.Errorf("probe.method must be %q or %q, got %q", probe.MethodTCP, probe.MethodICMP, c.Probe.Method)
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			return fmt.Errorf("fetch.timeout: %w", err)
		}
	}
	if c.Probe.Timeout != "" {
		if _, err := time.ParseDuration(c.Probe.Timeout); err != nil {
			return fmt.Errorf("probe.timeout: %w", err)
		}
	}
	if c.Policy.MaxVariants < 0 || c.Threads < 0 || c.Probe.Threads < 0 {
		return fmt.Errorf("thread and variant counts must not be negative")
	}
	return nil
}

// NodePolicy converts the policy section.
func (c *Config) NodePolicy() node.Policy {
	return node.Policy{
		MinLength:                c.Policy.MinLength,
		PlaceholderHosts:         c.Policy.PlaceholderHosts,
		SSIdentityIncludesCipher: c.Policy.SSIdentityIncludesCipher,
		RejectLabelKeywords:      c.Policy.RejectLabelKeywords,
	}
}

// FetcherConfig converts the fetch section, falling back to the defaults for
// empty fields.
func (c *Config) FetcherConfig() fetch.Config {
	out := fetch.DefaultConfig()
	out.Timeout = c.GetFetchTimeout()
	out.Retries = c.Fetch.Retries
	out.Insecure = c.Fetch.Insecure
	out.MaxBody = c.Fetch.MaxBody
	if c.Fetch.UserAgent != "" {
		out.UserAgent = c.Fetch.UserAgent
	}
	if c.Fetch.Transport != "" {
		out.Transport = c.Fetch.Transport
	}
	return out
}

// GetFetchTimeout returns the fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil || d <= 0 {
		return fetch.DefaultConfig().Timeout
	}
	return d
}

// GetProbeTimeout returns the probe timeout as a duration.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Probe.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
