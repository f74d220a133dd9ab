package net

import (
	"github.com/spf13/cobra"
)

var nodeLink string

// NetCmd is the net subcommand (groups network diagnostic tools).
var NetCmd = &cobra.Command{
	Use:   "net",
	Short: "Access a suite of network tools to check a node's endpoint (e.g., TCP, ICMP)",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func addSubcommandPalettes() {
	NetCmd.AddCommand(IcmpCmd)
	NetCmd.AddCommand(TcpCmd)
}

func init() {
	addSubcommandPalettes()
}
