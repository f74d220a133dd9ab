package subs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lilendian0x00/nodeharvest/pkg/config"
	"github.com/lilendian0x00/nodeharvest/pkg/fetch"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/utils"
	"github.com/lilendian0x00/nodeharvest/utils/customlog"

	"github.com/spf13/cobra"
)

// FetchConfig holds the configuration for the fetch command
type FetchConfig struct {
	SubscriptionURL string
	Remark          string
	UserAgent       string
	OutputFile      string
	Transport       string
	ConfigFile      string
	Verbose         bool
}

// FetchCommand encapsulates the fetch command functionality
type FetchCommand struct {
	config *FetchConfig
}

// NewFetchCommand creates a new instance of the fetch command
func NewFetchCommand() *cobra.Command {
	fc := &FetchCommand{
		config: &FetchConfig{},
	}
	return fc.createCommand()
}

// createCommand creates and configures the cobra command
func (fc *FetchCommand) createCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetches all node links from a subscription to a file",
		RunE:  fc.runCommand,
	}

	fc.addFlags(cmd)
	return cmd
}

// addFlags adds command-line flags to the command
func (fc *FetchCommand) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVarP(&fc.config.SubscriptionURL, "url", "u", "", "The subscription url")
	flags.StringVarP(&fc.config.Remark, "remark", "r", "", "Label prefix for the written links")
	flags.StringVarP(&fc.config.UserAgent, "useragent", "a", "", "Useragent to be used")
	flags.StringVarP(&fc.config.OutputFile, "out", "o", "-", "The output file where the links will be placed. - means stdout")
	flags.StringVarP(&fc.config.Transport, "transport", "x", "", "Fetch transport (req, utls)")
	flags.StringVar(&fc.config.ConfigFile, "config", "", "YAML configuration file")
	flags.BoolVarP(&fc.config.Verbose, "verbose", "v", false, "Verbose")
}

// runCommand executes the fetch command logic
func (fc *FetchCommand) runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(fc.config.ConfigFile)
	if err != nil {
		return err
	}
	fetchCfg := cfg.FetcherConfig()
	if fc.config.UserAgent != "" {
		fetchCfg.UserAgent = fc.config.UserAgent
	}
	if fc.config.Transport != "" {
		fetchCfg.Transport = fc.config.Transport
	}
	f, err := fetch.New(fetchCfg)
	if err != nil {
		return err
	}
	if c, ok := f.(interface{ Close() }); ok {
		defer c.Close()
	}

	sub := Subscription{
		Remark: fc.config.Remark,
		Url:    fc.config.SubscriptionURL,
	}
	if sub.Url == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Fprintln(os.Stderr, "Enter your subscription url:")
		text, _ := reader.ReadString('\n')
		sub.Url = strings.TrimSpace(text)
	}

	policy := cfg.NodePolicy()
	if err := sub.FetchAll(cmd.Context(), f, node.NewCanonicalizer(policy)); err != nil {
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}
	sub.RemoveDuplicate(policy, fc.config.Verbose)

	if err := fc.saveLinks(sub.Links()); err != nil {
		return fmt.Errorf("failed to save links: %w", err)
	}

	customlog.Printf(customlog.Success, "%d nodes have been written into %q (rejected: %d)\n",
		len(sub.Nodes), fc.config.OutputFile, sub.Rejected)
	return nil
}

// saveLinks saves the canonical links to a file
func (fc *FetchCommand) saveLinks(links []string) error {
	content := strings.Join(links, "\n")
	if len(links) > 0 {
		content += "\n"
	}
	return utils.WriteIntoFile(fc.config.OutputFile, []byte(content))
}
