package state

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/dando385/evm-indexer/internal/model"
	"github.com/dando385/evm-indexer/internal/writequeue"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, writequeue.EnsureSchema(db))
	return db
}

func TestLoadMissingRow(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := Load(context.Background(), db)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	want := model.IndexerState{ForwardBlock: 10, BackwardBlock: 20, LatestBlock: 25, IsSynced: false, LastUpdated: 1700000000}
	require.NoError(t, Save(ctx, db, want))

	got, ok, err := Load(ctx, db)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	want.ForwardBlock = 15
	want.IsSynced = true
	require.NoError(t, Save(ctx, db, want))

	got, ok, err = Load(ctx, db)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}
