package parse

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lilendian0x00/nodeharvest/pkg/config"
	"github.com/lilendian0x00/nodeharvest/pkg/node"
	"github.com/lilendian0x00/nodeharvest/utils"
	"github.com/lilendian0x00/nodeharvest/utils/customlog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	readFromSTDIN bool
	nodeLink      string
	nodeLinksFile string
	configFile    string
)

// ParseCmd represents the parse command
var ParseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Gives a detailed info about a node link and its canonical form",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 && !readFromSTDIN && nodeLink == "" && nodeLinksFile == "" {
			return cmd.Help()
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		canon := node.NewCanonicalizer(cfg.NodePolicy())

		if nodeLinksFile != "" {
			links, err := utils.ParseFileByNewline(nodeLinksFile)
			if err != nil {
				return err
			}
			d := color.New(color.FgCyan, color.Bold)
			for i, link := range links {
				d.Printf("Node Number: %d\n", i+1)
				printNode(canon, link)
			}
			return nil
		}

		if readFromSTDIN {
			reader := bufio.NewReader(os.Stdin)
			fmt.Println("Reading node link from STDIN:")
			text, _ := reader.ReadString('\n')
			nodeLink = text
		} else if nodeLink == "" {
			nodeLink = args[0]
		}
		fmt.Printf("\n")
		if !printNode(canon, strings.TrimSpace(nodeLink)) {
			return fmt.Errorf("link rejected")
		}
		return nil
	},
}

// printNode shows one link and reports whether it was accepted.
func printNode(canon *node.Canonicalizer, link string) bool {
	n, err := canon.Parse(link)
	if err != nil {
		customlog.Printf(customlog.Failure, "%v\n\n", err)
		return false
	}
	fmt.Print(n.DetailsStr())
	fmt.Printf("%s: %s\n%s: %s\n\n",
		color.RedString("Fingerprint"), canon.Fingerprint(n),
		color.RedString("Canonical"), node.Render(n, ""))
	return true
}

func init() {
	ParseCmd.Flags().BoolVarP(&readFromSTDIN, "stdin", "i", false, "Read node link from STDIN")
	ParseCmd.Flags().StringVarP(&nodeLink, "config", "c", "", "The node link")
	ParseCmd.Flags().StringVarP(&nodeLinksFile, "file", "f", "", "Read node links from a file")
	ParseCmd.Flags().StringVar(&configFile, "policy", "", "YAML configuration file with a policy section")
}
