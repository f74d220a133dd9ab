package cmd

import (
	"os"

	"github.com/lilendian0x00/nodeharvest/cmd/harvest"
	"github.com/lilendian0x00/nodeharvest/cmd/net"
	"github.com/lilendian0x00/nodeharvest/cmd/parse"
	"github.com/lilendian0x00/nodeharvest/cmd/subs"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "nodeharvest",
	Short:   "Collect, normalize and deduplicate proxy node links from public sources",
	Long:    ``,
	Version: "1.0.0",
	// Main Tools:
	//1. harvest: Fetches every source, canonicalizes and merges the nodes.
	//2. parse: Shows the canonical form of a link.
	//3. subs: Fetches a single subscription.
	//4. net: Reachability tests for a link's endpoint.

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func addSubcommandPalettes() {
	rootCmd.AddCommand(harvest.HarvestCmd)
	rootCmd.AddCommand(parse.ParseCmd)
	rootCmd.AddCommand(subs.SubsCmd)
	rootCmd.AddCommand(net.NetCmd)
}

func init() {
	addSubcommandPalettes()
}
