// Command evmindexer is the indexer's process entrypoint, a
// github.com/spf13/cobra root command mirroring orbas1-Synnergy's
// cmd/synnergy root+subcommand shape.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "evmindexer",
		Short: "bidirectional EVM block indexer",
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")

	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
