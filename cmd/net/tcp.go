package net

import (
	"fmt"
	"time"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/pkg/probe"
	"github.com/lilendian0x00/nodeharvest/utils/customlog"

	"github.com/spf13/cobra"
)

var tcpTimeout time.Duration

// TcpCmd represents the tcp command
var TcpCmd = &cobra.Command{
	Use:   "tcp",
	Short: "Examine TCP Connection delay to node's host",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := node.Parse(nodeLink)
		if err != nil {
			return fmt.Errorf("couldn't parse the node: %w", err)
		}

		p := &probe.TCPProber{Timeout: tcpTimeout}
		latency, err := p.Probe(cmd.Context(), parsed.Endpoint())
		if err != nil {
			return err
		}
		customlog.Printf(customlog.Success, "Established TCP connection to %s in %dms\n", parsed.Endpoint(), latency.Milliseconds())
		return nil
	},
}

func init() {
	TcpCmd.Flags().StringVarP(&nodeLink, "config", "c", "", "The node link")
	TcpCmd.Flags().DurationVarP(&tcpTimeout, "timeout", "d", 5*time.Second, "Connect timeout")
}
