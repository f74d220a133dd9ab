package net

import (
	"fmt"
	"time"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/pkg/probe"
	"github.com/lilendian0x00/nodeharvest/utils/customlog"

	"github.com/spf13/cobra"
)

var (
	testCount    uint16
	unprivileged bool
)

// IcmpCmd represents the icmp command
var IcmpCmd = &cobra.Command{
	Use:   "icmp",
	Short: "PING or ICMP test node's host",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := node.Parse(nodeLink)
		if err != nil {
			return fmt.Errorf("couldn't parse the node: %w", err)
		}

		host := parsed.Endpoint().Host
		p := &probe.ICMPProber{Timeout: 3 * time.Second, Unprivileged: unprivileged}
		var received int
		err = p.Ping(cmd.Context(), host, int(testCount), func(seq int, rtt time.Duration, err error) {
			if err != nil {
				customlog.Printf(customlog.Failure, "seq=%d: %v\n", seq, err)
				return
			}
			received++
			customlog.Printf(customlog.Success, "Reply from %s: seq=%d time=%dms\n", host, seq, rtt.Milliseconds())
		})
		if err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		customlog.Printf(customlog.Finished, "%d packets transmitted, %d received\n", testCount, received)
		return nil
	},
}

func init() {
	IcmpCmd.Flags().StringVarP(&nodeLink, "config", "c", "", "The node link")
	IcmpCmd.Flags().Uint16VarP(&testCount, "count", "t", 4, "Count of tests")
	IcmpCmd.Flags().BoolVarP(&unprivileged, "unprivileged", "u", false, "Use datagram ICMP sockets instead of raw ones")
}
