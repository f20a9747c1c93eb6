package syncer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/dando385/evm-indexer/internal/config"
	"github.com/dando385/evm-indexer/internal/model"
	"github.com/dando385/evm-indexer/internal/state"
	"github.com/dando385/evm-indexer/internal/writequeue"
)

func stateWith(forward, backward uint64) model.IndexerState {
	return model.IndexerState{ForwardBlock: forward, BackwardBlock: backward, LatestBlock: backward}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, writequeue.EnsureSchema(db))
	return db
}

func newTestSyncer(db *sql.DB, client *fakeChainClient, asm *fakeAssembler, cfg config.Config) *Syncer {
	q := writequeue.New(db, 1000, 2, 50, nil)
	return New(client, asm, q, db, cfg, nil)
}

func TestLoadOrInitStateSeedsFromTipOnFreshDB(t *testing.T) {
	db := openTestDB(t)
	client := newFakeChainClient(500)
	s := newTestSyncer(db, client, &fakeAssembler{}, config.Default())

	require.NoError(t, s.loadOrInitState(context.Background()))
	forward, backward, synced := s.ptrs.snapshot()
	require.Equal(t, uint64(0), forward)
	require.Equal(t, uint64(500), backward)
	require.False(t, synced)
}

func TestLoadOrInitStateResumesPersistedPointers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, state.Save(ctx, db, stateWith(30, 70)))

	client := newFakeChainClient(999)
	s := newTestSyncer(db, client, &fakeAssembler{}, config.Default())
	require.NoError(t, s.loadOrInitState(ctx))

	forward, backward, _ := s.ptrs.snapshot()
	require.Equal(t, uint64(30), forward)
	require.Equal(t, uint64(70), backward)
}

func TestBackfillDrainsEveryBlockExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeChainClient(199)
	asm := &fakeAssembler{}
	cfg := config.Default()
	cfg.BlocksPerBatch = 20
	cfg.FetchConcurrency = 4
	cfg.CheckpointInterval = 3
	cfg.TipRefreshInterval = 5

	s := newTestSyncer(db, client, asm, cfg)
	require.NoError(t, s.loadOrInitState(ctx))

	s.queue.Start(ctx)
	require.NoError(t, s.backfill(ctx))
	require.NoError(t, s.queue.WaitForDrain(ctx))
	s.queue.Stop()

	_, _, synced := s.ptrs.snapshot()
	require.True(t, synced)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&count))
	require.Equal(t, 200, count)
}

func TestBackfillRetriesRangeOnTransientTimeout(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeChainClient(49)
	failedOnce := false
	asm := &fakeAssembler{fail: func(lo, hi uint64) bool {
		if !failedOnce && lo == 0 {
			failedOnce = true
			return true
		}
		return false
	}}
	cfg := config.Default()
	cfg.BlocksPerBatch = 10
	cfg.FetchConcurrency = 1
	cfg.RetryDelayMs = 5

	s := newTestSyncer(db, client, asm, cfg)
	require.NoError(t, s.loadOrInitState(ctx))
	s.queue.Start(ctx)
	require.NoError(t, s.backfill(ctx))
	require.NoError(t, s.queue.WaitForDrain(ctx))
	s.queue.Stop()

	require.True(t, failedOnce, "the injected failure must have been hit")
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&count))
	require.Equal(t, 50, count, "the retried range must still land once recovered")
}

func TestMaybeCheckpointAndRefreshTipRespectsCadence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	client := newFakeChainClient(100)
	s := newTestSyncer(db, client, &fakeAssembler{}, config.Default())
	require.NoError(t, s.loadOrInitState(ctx))
	s.cfg.CheckpointInterval = 2
	s.cfg.TipRefreshInterval = 3

	s.maybeCheckpointAndRefreshTip(ctx) // round 1: neither fires
	_, ok, err := state.Load(ctx, db)
	require.NoError(t, err)
	require.True(t, ok) // loadOrInitState already wrote the initial row

	client.setTip(250)
	s.maybeCheckpointAndRefreshTip(ctx) // round 2: checkpoint fires, tip refresh does not
	_, backward, _ := s.ptrs.snapshot()
	require.Equal(t, uint64(100), backward, "tip refresh must not have fired yet")

	s.maybeCheckpointAndRefreshTip(ctx) // round 3: tip refresh fires
	_, backward, _ = s.ptrs.snapshot()
	require.Equal(t, uint64(250), backward)
}

func TestLiveTailWSPrefersSubscriptionOverPolling(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	client := newFakeChainClient(10)
	asm := &fakeAssembler{}
	cfg := config.Default()
	cfg.WSURL = "ws://fake"
	cfg.WSWatchdogMs = 200

	s := newTestSyncer(db, client, asm, cfg)
	require.NoError(t, s.loadOrInitState(ctx))
	s.queue.Start(ctx)
	defer s.queue.Stop()

	go func() {
		time.Sleep(20 * time.Millisecond)
		client.pushHead(11)
		time.Sleep(20 * time.Millisecond)
		client.pushHead(12)
	}()

	err := s.liveTail(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, backward, _ := s.ptrs.snapshot()
	require.Equal(t, uint64(12), backward)
}
