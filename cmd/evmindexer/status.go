package main

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/spf13/cobra"

	"github.com/dando385/evm-indexer/internal/config"
	"github.com/dando385/evm-indexer/internal/state"
)

// statusCmd is the read-only convenience subcommand spec.md §6.3/§10
// describes: a thin wrapper over internal/state.Load that performs no
// indexing.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the persisted indexer_state row and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			ctx := context.Background()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			st, ok, err := state.Load(ctx, db)
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no indexer_state row yet (database not initialized)")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "forward_block=%d backward_block=%d latest_block=%d is_synced=%t last_updated=%d\n",
				st.ForwardBlock, st.BackwardBlock, st.LatestBlock, st.IsSynced, st.LastUpdated)
			return nil
		},
	}
}
