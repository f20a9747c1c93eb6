package writequeue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/dando385/evm-indexer/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(db))
	return db
}

func TestWriteBatchIdempotentOnBlocksAndTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	frag := model.BlockFragment{
		Header: model.BlockHeader{Number: 100, Hash: "0xblock100", ParentHash: "0xparent", Miner: "0xminer", TransactionCount: 1},
		Transactions: []model.Transaction{
			{Hash: "0xtx1", BlockNumber: 100, From: "0xfrom", Value: "0", Status: 1, EffectiveGasPrice: "1"},
		},
	}

	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag}))
	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag}), "re-writing the same fragment must not error")

	var blockCount, txCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&blockCount))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&txCount))
	require.Equal(t, 1, blockCount)
	require.Equal(t, 1, txCount)
}

func TestWriteBatchDedupsAddressesKeepingFirstSeen(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	frag1 := model.BlockFragment{
		Header:    model.BlockHeader{Number: 1, Hash: "0xb1"},
		Addresses: []model.Address{{Address: "0xaaa", FirstSeenBlock: 1, FirstSeenTx: "0xtx1", TxCount: 1, Balance: "0"}},
	}
	frag2 := model.BlockFragment{
		Header:    model.BlockHeader{Number: 2, Hash: "0xb2"},
		Addresses: []model.Address{{Address: "0xaaa", FirstSeenBlock: 2, FirstSeenTx: "0xtx2", TxCount: 1, Balance: "0"}},
	}

	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag1}))
	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag2}))

	var firstSeenBlock int
	var firstSeenTx string
	require.NoError(t, db.QueryRow(`SELECT first_seen_block, first_seen_tx FROM addresses WHERE address = ?`, "0xaaa").Scan(&firstSeenBlock, &firstSeenTx))
	require.Equal(t, 1, firstSeenBlock, "a later block must never overwrite first_seen_block")
	require.Equal(t, "0xtx1", firstSeenTx)
}

func TestWriteBatchMergesAddressTransactionFlags(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	frag := model.BlockFragment{
		Header: model.BlockHeader{Number: 1, Hash: "0xb1"},
		AddressTransactions: []model.AddressTransaction{
			{Address: "0xself", TransactionHash: "0xtx", BlockNumber: 1, IsFrom: true, IsTo: false},
			{Address: "0xself", TransactionHash: "0xtx", BlockNumber: 1, IsFrom: false, IsTo: true},
		},
	}
	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag}))

	var isFrom, isTo int
	var rowCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM address_transactions WHERE address = ? AND transaction_hash = ?`, "0xself", "0xtx").Scan(&rowCount))
	require.Equal(t, 1, rowCount, "a self-send must collapse to one OR-merged row")
	require.NoError(t, db.QueryRow(`SELECT is_from, is_to FROM address_transactions WHERE address = ? AND transaction_hash = ?`, "0xself", "0xtx").Scan(&isFrom, &isTo))
	require.Equal(t, 1, isFrom)
	require.Equal(t, 1, isTo)
}

func TestWriteBatchLogsRespectUniqueIndex(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	log := model.Log{TransactionHash: "0xtx", BlockNumber: 1, LogIndex: 0, Address: "0xtoken", Data: "0x"}
	frag := model.BlockFragment{Header: model.BlockHeader{Number: 1, Hash: "0xb1"}, Logs: []model.Log{log, log}}

	require.NoError(t, writeBatch(ctx, db, []model.BlockFragment{frag}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM logs WHERE transaction_hash = ? AND log_index = ?`, "0xtx", 0).Scan(&count))
	require.Equal(t, 1, count, "the (transaction_hash, log_index) unique index must absorb the duplicate")
}

func TestQueueEnqueueAndDrain(t *testing.T) {
	db := openTestDB(t)
	q := New(db, 100, 2, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	for i := uint64(1); i <= 5; i++ {
		q.Enqueue(model.BlockFragment{Header: model.BlockHeader{Number: i, Hash: "0xb"}})
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	require.NoError(t, q.WaitForDrain(drainCtx))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&count))
	require.Equal(t, 5, count)
}
