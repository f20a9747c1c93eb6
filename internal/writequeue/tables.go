package writequeue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dando385/evm-indexer/internal/model"
)

// --- dedup (spec §4.6 "Intra-batch dedup") ---

// dedupBlocks keeps the last occurrence per block number (last values
// win, paired with ON CONFLICT DO UPDATE below, so a repeated header
// in one batch converges to its most recent read). Header-only
// fragments from a failed fetch (empty Hash) are dropped.
func dedupBlocks(headers []model.BlockHeader) []model.BlockHeader {
	byNumber := make(map[uint64]model.BlockHeader, len(headers))
	order := make([]uint64, 0, len(headers))
	for _, h := range headers {
		if h.Hash == "" {
			continue
		}
		if _, ok := byNumber[h.Number]; !ok {
			order = append(order, h.Number)
		}
		byNumber[h.Number] = h
	}
	out := make([]model.BlockHeader, 0, len(order))
	for _, n := range order {
		out = append(out, byNumber[n])
	}
	return out
}

func dedupTransactions(txs []model.Transaction) []model.Transaction {
	byHash := make(map[string]model.Transaction, len(txs))
	order := make([]string, 0, len(txs))
	for _, t := range txs {
		if t.Hash == "" {
			continue
		}
		if _, ok := byHash[t.Hash]; !ok {
			order = append(order, t.Hash)
		}
		byHash[t.Hash] = t
	}
	out := make([]model.Transaction, 0, len(order))
	for _, h := range order {
		out = append(out, byHash[h])
	}
	return out
}

// dedupAddressesKeepFirst keeps the first occurrence per address, per
// spec §3's "first_seen_block is the minimum block ... later blocks
// never overwrite it."
func dedupAddressesKeepFirst(addrs []model.Address) []model.Address {
	seen := make(map[string]bool, len(addrs))
	out := make([]model.Address, 0, len(addrs))
	for _, a := range addrs {
		if seen[a.Address] {
			continue
		}
		seen[a.Address] = true
		out = append(out, a)
	}
	return out
}

// dedupAddressTransactions keeps one row per (address, tx_hash),
// OR-merging is_from/is_to, per spec §4.6.
func dedupAddressTransactions(ats []model.AddressTransaction) []model.AddressTransaction {
	type key struct {
		addr string
		tx   string
	}
	byKey := make(map[key]*model.AddressTransaction, len(ats))
	order := make([]key, 0, len(ats))
	for _, at := range ats {
		k := key{at.Address, at.TransactionHash}
		if existing, ok := byKey[k]; ok {
			existing.IsFrom = existing.IsFrom || at.IsFrom
			existing.IsTo = existing.IsTo || at.IsTo
			continue
		}
		cp := at
		byKey[k] = &cp
		order = append(order, k)
	}
	out := make([]model.AddressTransaction, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

func dedupContracts(cs []model.Contract) []model.Contract {
	seen := make(map[string]bool, len(cs))
	out := make([]model.Contract, 0, len(cs))
	for _, c := range cs {
		if seen[c.Address] {
			continue
		}
		seen[c.Address] = true
		out = append(out, c)
	}
	return out
}

func dedupERC20Tokens(ts []model.ERC20Token) []model.ERC20Token {
	seen := make(map[string]bool, len(ts))
	out := make([]model.ERC20Token, 0, len(ts))
	for _, t := range ts {
		if seen[t.Address] {
			continue
		}
		seen[t.Address] = true
		out = append(out, t)
	}
	return out
}

func dedupERC721Tokens(ts []model.ERC721Token) []model.ERC721Token {
	seen := make(map[string]bool, len(ts))
	out := make([]model.ERC721Token, 0, len(ts))
	for _, t := range ts {
		if seen[t.Address] {
			continue
		}
		seen[t.Address] = true
		out = append(out, t)
	}
	return out
}

func dedupERC1155Tokens(ts []model.ERC1155Token) []model.ERC1155Token {
	seen := make(map[string]bool, len(ts))
	out := make([]model.ERC1155Token, 0, len(ts))
	for _, t := range ts {
		if seen[t.Address] {
			continue
		}
		seen[t.Address] = true
		out = append(out, t)
	}
	return out
}

// --- bulk insert (spec §4.6 step 3) ---

func insertBlocks(ctx context.Context, tx *sql.Tx, rows []model.BlockHeader) error {
	const cols = 10
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO blocks (number, hash, parent_hash, miner, timestamp, gas_limit, gas_used, size, base_fee_per_gas, transaction_count) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Number, r.Hash, r.ParentHash, r.Miner, r.Timestamp, r.GasLimit, r.GasUsed, r.Size, r.BaseFeePerGas, r.TransactionCount)
		}
		b.WriteString(` ON CONFLICT(number) DO UPDATE SET
			hash=excluded.hash, parent_hash=excluded.parent_hash, miner=excluded.miner,
			timestamp=excluded.timestamp, gas_limit=excluded.gas_limit, gas_used=excluded.gas_used,
			size=excluded.size, base_fee_per_gas=excluded.base_fee_per_gas, transaction_count=excluded.transaction_count`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "blocks")
	})
}

func insertTransactions(ctx context.Context, tx *sql.Tx, rows []model.Transaction) error {
	const cols = 21
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO transactions (hash, block_number, transaction_index, from_address, to_address, value, gas, gas_price, max_fee_per_gas, max_priority_fee_per_gas, input, nonce, type, chain_id, access_list, status, gas_used, cumulative_gas_used, effective_gas_price, contract_address, logs_count) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args,
				r.Hash, r.BlockNumber, r.TransactionIndex, r.From, r.To, r.Value, r.Gas, r.GasPrice,
				r.MaxFeePerGas, r.MaxPriorityFeePerGas, r.Input, r.Nonce, r.Type, r.ChainID, r.AccessList,
				r.Status, r.GasUsed, r.CumulativeGasUsed, r.EffectiveGasPrice, r.ContractAddress, r.LogsCount,
			)
		}
		b.WriteString(` ON CONFLICT(hash) DO UPDATE SET
			block_number=excluded.block_number, transaction_index=excluded.transaction_index,
			from_address=excluded.from_address, to_address=excluded.to_address, value=excluded.value,
			gas=excluded.gas, gas_price=excluded.gas_price, max_fee_per_gas=excluded.max_fee_per_gas,
			max_priority_fee_per_gas=excluded.max_priority_fee_per_gas, input=excluded.input,
			nonce=excluded.nonce, type=excluded.type, chain_id=excluded.chain_id, access_list=excluded.access_list,
			status=excluded.status, gas_used=excluded.gas_used, cumulative_gas_used=excluded.cumulative_gas_used,
			effective_gas_price=excluded.effective_gas_price, contract_address=excluded.contract_address,
			logs_count=excluded.logs_count`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "transactions")
	})
}

func insertLogs(ctx context.Context, tx *sql.Tx, rows []model.Log) error {
	const cols = 14
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO logs (transaction_hash, block_number, log_index, address, data, topic0, topic1, topic2, topic3, removed, event_name, event_signature, event_standard, decoded_params) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			var decodedParams interface{}
			if r.DecodedParams != nil {
				decodedParams = string(r.DecodedParams)
			}
			args = append(args,
				r.TransactionHash, r.BlockNumber, r.LogIndex, r.Address, r.Data,
				r.Topic0, r.Topic1, r.Topic2, r.Topic3, boolToInt(r.Removed),
				r.EventName, r.EventSignature, r.EventStandard, decodedParams,
			)
		}
		// Resolves spec.md §9 open question 1: rely on the unique index
		// over (transaction_hash, log_index) with DO NOTHING rather than
		// leaving logs fully unconstrained.
		b.WriteString(` ON CONFLICT(transaction_hash, log_index) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "logs")
	})
}

func insertAddresses(ctx context.Context, tx *sql.Tx, rows []model.Address) error {
	const cols = 6
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO addresses (address, first_seen_block, first_seen_tx, is_contract, tx_count, balance) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.FirstSeenBlock, r.FirstSeenTx, boolToInt(r.IsContract), r.TxCount, r.Balance)
		}
		b.WriteString(` ON CONFLICT(address) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "addresses")
	})
}

func insertAddressTransactions(ctx context.Context, tx *sql.Tx, rows []model.AddressTransaction) error {
	const cols = 5
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO address_transactions (address, transaction_hash, block_number, is_from, is_to) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.TransactionHash, r.BlockNumber, boolToInt(r.IsFrom), boolToInt(r.IsTo))
		}
		b.WriteString(` ON CONFLICT(address, transaction_hash) DO UPDATE SET
			is_from = is_from OR excluded.is_from, is_to = is_to OR excluded.is_to`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "address_transactions")
	})
}

func insertContracts(ctx context.Context, tx *sql.Tx, rows []model.Contract) error {
	const cols = 8
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO contracts (address, creator_address, creation_tx_hash, creation_block_number, bytecode, is_erc20, is_erc721, is_erc1155) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.CreatorAddress, r.CreationTxHash, r.CreationBlockNumber, r.Bytecode, boolToInt(r.IsERC20), boolToInt(r.IsERC721), boolToInt(r.IsERC1155))
		}
		b.WriteString(` ON CONFLICT(address) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "contracts")
	})
}

func insertERC20Tokens(ctx context.Context, tx *sql.Tx, rows []model.ERC20Token) error {
	const cols = 5
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc20_tokens (address, name, symbol, decimals, total_supply) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.Name, r.Symbol, r.Decimals, r.TotalSupply)
		}
		b.WriteString(` ON CONFLICT(address) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc20_tokens")
	})
}

func insertERC721Tokens(ctx context.Context, tx *sql.Tx, rows []model.ERC721Token) error {
	const cols = 4
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc721_tokens (address, name, symbol, total_supply) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.Name, r.Symbol, r.TotalSupply)
		}
		b.WriteString(` ON CONFLICT(address) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc721_tokens")
	})
}

func insertERC1155Tokens(ctx context.Context, tx *sql.Tx, rows []model.ERC1155Token) error {
	const cols = 2
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc1155_tokens (address, uri) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.Address, r.URI)
		}
		b.WriteString(` ON CONFLICT(address) DO NOTHING`)
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc1155_tokens")
	})
}

func insertERC20Transfers(ctx context.Context, tx *sql.Tx, rows []model.ERC20Transfer) error {
	const cols = 7
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc20_transfers (transaction_hash, log_index, block_number, token_address, from_address, to_address, value) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.TransactionHash, r.LogIndex, r.BlockNumber, r.TokenAddress, r.From, r.To, r.Value)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc20_transfers")
	})
}

func insertERC721Transfers(ctx context.Context, tx *sql.Tx, rows []model.ERC721Transfer) error {
	const cols = 7
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc721_transfers (transaction_hash, log_index, block_number, token_address, from_address, to_address, token_id) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.TransactionHash, r.LogIndex, r.BlockNumber, r.TokenAddress, r.From, r.To, r.TokenID)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc721_transfers")
	})
}

func insertERC1155Transfers(ctx context.Context, tx *sql.Tx, rows []model.ERC1155Transfer) error {
	const cols = 9
	return chunkRows(len(rows), cols, func(start, count int) error {
		var b strings.Builder
		args := make([]interface{}, 0, count*cols)
		b.WriteString(`INSERT INTO erc1155_transfers (transaction_hash, log_index, block_number, token_address, operator, from_address, to_address, token_id, value) VALUES `)
		for i := 0; i < count; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(placeholderGroup(cols))
			r := rows[start+i]
			args = append(args, r.TransactionHash, r.LogIndex, r.BlockNumber, r.TokenAddress, r.Operator, r.From, r.To, r.TokenID, r.Value)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return wrapInsertErr(err, "erc1155_transfers")
	})
}

func wrapInsertErr(err error, table string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("writequeue: insert %s: %w", table, err)
}
