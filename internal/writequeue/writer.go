package writequeue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dando385/evm-indexer/internal/model"
)

// maxPlaceholders bounds how many `?` one statement may carry. SQLite's
// default host-parameter ceiling is 999; this stays comfortably under
// it, leaving headroom for wide tables (spec §4.6: "chunked so
// parameter count stays under the driver limit").
const maxPlaceholders = 900

// writeBatch implements spec §4.6 steps 2-4: flatten every per-table
// slice across the batch, dedup per-table, write one chunked multi-row
// statement per table, all inside one transaction.
func writeBatch(ctx context.Context, db *sql.DB, batch []model.BlockFragment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("writequeue: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		headers     []model.BlockHeader
		txs         []model.Transaction
		logs        []model.Log
		addrs       []model.Address
		addrTxs     []model.AddressTransaction
		contracts   []model.Contract
		erc20s      []model.ERC20Token
		erc721s     []model.ERC721Token
		erc1155s    []model.ERC1155Token
		erc20Trs    []model.ERC20Transfer
		erc721Trs   []model.ERC721Transfer
		erc1155Trs  []model.ERC1155Transfer
	)
	for _, f := range batch {
		headers = append(headers, f.Header)
		txs = append(txs, f.Transactions...)
		logs = append(logs, f.Logs...)
		addrs = append(addrs, f.Addresses...)
		addrTxs = append(addrTxs, f.AddressTransactions...)
		contracts = append(contracts, f.Contracts...)
		erc20s = append(erc20s, f.ERC20Tokens...)
		erc721s = append(erc721s, f.ERC721Tokens...)
		erc1155s = append(erc1155s, f.ERC1155Tokens...)
		erc20Trs = append(erc20Trs, f.ERC20Transfers...)
		erc721Trs = append(erc721Trs, f.ERC721Transfers...)
		erc1155Trs = append(erc1155Trs, f.ERC1155Transfers...)
	}

	steps := []func() error{
		func() error { return insertBlocks(ctx, tx, dedupBlocks(headers)) },
		func() error { return insertTransactions(ctx, tx, dedupTransactions(txs)) },
		func() error { return insertLogs(ctx, tx, logs) },
		func() error { return insertAddresses(ctx, tx, dedupAddressesKeepFirst(addrs)) },
		func() error { return insertAddressTransactions(ctx, tx, dedupAddressTransactions(addrTxs)) },
		func() error { return insertContracts(ctx, tx, dedupContracts(contracts)) },
		func() error { return insertERC20Tokens(ctx, tx, dedupERC20Tokens(erc20s)) },
		func() error { return insertERC721Tokens(ctx, tx, dedupERC721Tokens(erc721s)) },
		func() error { return insertERC1155Tokens(ctx, tx, dedupERC1155Tokens(erc1155s)) },
		func() error { return insertERC20Transfers(ctx, tx, erc20Trs) },
		func() error { return insertERC721Transfers(ctx, tx, erc721Trs) },
		func() error { return insertERC1155Transfers(ctx, tx, erc1155Trs) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("writequeue: commit: %w", err)
	}
	committed = true
	return nil
}

// chunkRows splits n rows into groups no larger than maxPlaceholders/cols,
// invoking emit(startIdx, count) per chunk.
func chunkRows(n, cols int, emit func(start, count int) error) error {
	if n == 0 {
		return nil
	}
	perChunk := maxPlaceholders / cols
	if perChunk < 1 {
		perChunk = 1
	}
	for start := 0; start < n; start += perChunk {
		count := perChunk
		if start+count > n {
			count = n - start
		}
		if err := emit(start, count); err != nil {
			return err
		}
	}
	return nil
}

func placeholderGroup(cols int) string {
	s := "("
	for i := 0; i < cols; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s + ")"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
