package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dando385/evm-indexer/internal/state"
)

// runCmd is spec.md §6's core CLI operation: inspect persisted state,
// print the observed tip, begin sync, exit 0 on a clean signal-
// triggered stop, non-zero on a fatal error.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the indexer (backfill, then follow the chain tip)",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, configPath)
			if err != nil {
				return fmt.Errorf("startup: %w", err)
			}
			defer d.close()

			if st, ok, err := state.Load(ctx, d.db); err == nil && ok {
				d.log.WithFields(logrus.Fields{
					"forward_block":  st.ForwardBlock,
					"backward_block": st.BackwardBlock,
					"is_synced":      st.IsSynced,
				}).Info("resuming with persisted state")
			}

			if tip, err := d.client.LatestBlockNumber(ctx); err == nil {
				d.log.WithField("tip", tip).Info("observed chain tip")
			}

			sy := buildSyncer(d)
			if err := sy.Run(ctx); err != nil {
				d.log.WithError(err).Error("indexer exited with error")
				return err
			}
			d.log.Info("indexer stopped cleanly")
			return nil
		},
	}
}
