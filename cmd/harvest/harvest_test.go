package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lilendian0x00/nodeharvest/pkg/config"

	"github.com/spf13/cobra"
)

func TestLoadSources(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sources.txt")
	body := "# comment\nhttps://a.example/sub\n\nraw.example/list\nhttps://a.example/sub\n"
	if err := os.WriteFile(file, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := loadSources(file, []string{"https://b.example/x", "raw.example/list"})
	if err != nil {
		t.Fatalf("loadSources() error = %v", err)
	}
	want := []string{"https://a.example/sub", "raw.example/list", "https://b.example/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loadSources() = %v, want %v", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := Config{SourcesFile: "s.txt", Winner: "first", ProbeMethod: "tcp", Transport: "req"}
	if err := validateConfig(&valid, nil); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		args   []string
	}{
		{"no sources", func(c *Config) { c.SourcesFile = "" }, nil},
		{"winner", func(c *Config) { c.Winner = "fastest" }, nil},
		{"method", func(c *Config) { c.ProbeMethod = "udp" }, nil},
		{"transport", func(c *Config) { c.Transport = "curl" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := validateConfig(&cfg, tt.args); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "harvest.yaml")
	if err := os.WriteFile(cfgFile, []byte("threads: 16\noutput:\n  path: from-file.txt\n"), 0644); err != nil {
		t.Fatal(err)
	}

	flagsCfg := &Config{}
	cmd := &cobra.Command{Use: "harvest"}
	addFlags(cmd, flagsCfg)
	if err := cmd.ParseFlags([]string{"--config", cfgFile, "--winner", "latency", "-t", "4", "--keep-dead"}); err != nil {
		t.Fatal(err)
	}

	fc, err := loadConfig(cmd, flagsCfg)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if fc.Threads != 4 || fc.Policy.Winner != "latency" || fc.Probe.Prune {
		t.Errorf("flags not applied: %+v", fc)
	}
	if fc.Output.Path != "from-file.txt" {
		t.Errorf("unset flag overrode file value: %q", fc.Output.Path)
	}
}

func TestRun(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("trojan://pw@b.host.org:443\nvless://id@a.host.org:443?sni=a.host.org\ntrojan://pw@b.host.org:443#copy\n"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Path = filepath.Join(dir, "nodes.txt")
	cfg.Output.Stats = filepath.Join(dir, "stats.csv")

	if err := run(context.Background(), cfg, []string{ts.URL}, false); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := "trojan://pw@b.host.org:443#1\nvless://id@a.host.org:443?sni=a.host.org#2\n"
	if string(data) != want {
		t.Errorf("nodes file = %q, want %q", data, want)
	}
	stats, err := os.ReadFile(cfg.Output.Stats)
	if err != nil || !strings.Contains(string(stats), ts.URL+",http,2,Success") {
		t.Errorf("stats = %q, %v", stats, err)
	}
}
