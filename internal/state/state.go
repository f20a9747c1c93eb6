// Package state persists the singleton indexer_state row (spec §3).
// Only the sync driver mutates it (spec §5's "Shared-resource policy":
// "Indexer state row: mutated exclusively by the sync driver; writers
// and assembler never touch it").
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dando385/evm-indexer/internal/model"
)

// Load reads the id=1 row. ok is false when no row exists yet (a fresh
// database), in which case the sync driver initializes forward_block=0
// and backward_block=current tip, per spec §4.2's checkpointing rule.
func Load(ctx context.Context, db *sql.DB) (model.IndexerState, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT forward_block, backward_block, latest_block, is_synced, last_updated FROM indexer_state WHERE id = 1`)
	var s model.IndexerState
	var isSynced int
	err := row.Scan(&s.ForwardBlock, &s.BackwardBlock, &s.LatestBlock, &isSynced, &s.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IndexerState{}, false, nil
	}
	if err != nil {
		return model.IndexerState{}, false, fmt.Errorf("state: load: %w", err)
	}
	s.IsSynced = isSynced != 0
	return s, true, nil
}

// Save upserts the singleton row with the values in s. It does not
// derive IsSynced; the sync driver sets it to forward_block >
// backward_block before checkpointing.
func Save(ctx context.Context, db *sql.DB, s model.IndexerState) error {
	isSynced := 0
	if s.IsSynced {
		isSynced = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO indexer_state (id, forward_block, backward_block, latest_block, is_synced, last_updated)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			forward_block=excluded.forward_block, backward_block=excluded.backward_block,
			latest_block=excluded.latest_block, is_synced=excluded.is_synced, last_updated=excluded.last_updated
	`, s.ForwardBlock, s.BackwardBlock, s.LatestBlock, isSynced, s.LastUpdated)
	if err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}
