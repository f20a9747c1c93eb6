package writequeue

import (
	"database/sql"
	"fmt"
)

// ddl is the core runtime schema. Ownership of schema migration and
// backfill tooling sits outside this package (spec.md frames schema
// DDL as an external collaborator's concern); EnsureSchema exists so
// the write queue itself, and its tests, have something to target
// without depending on that external tool having run first. It is
// idempotent (CREATE TABLE/INDEX IF NOT EXISTS) so calling it against
// an already-migrated database is a no-op.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		number INTEGER PRIMARY KEY,
		hash TEXT NOT NULL,
		parent_hash TEXT NOT NULL,
		miner TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		gas_limit INTEGER NOT NULL,
		gas_used INTEGER NOT NULL,
		size INTEGER NOT NULL,
		base_fee_per_gas TEXT,
		transaction_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		block_number INTEGER NOT NULL,
		transaction_index INTEGER NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT,
		value TEXT NOT NULL,
		gas INTEGER NOT NULL,
		gas_price TEXT,
		max_fee_per_gas TEXT,
		max_priority_fee_per_gas TEXT,
		input TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		type INTEGER NOT NULL,
		chain_id TEXT,
		access_list BLOB,
		status INTEGER NOT NULL,
		gas_used INTEGER NOT NULL,
		cumulative_gas_used INTEGER NOT NULL,
		effective_gas_price TEXT NOT NULL,
		contract_address TEXT,
		logs_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_hash TEXT NOT NULL,
		block_number INTEGER NOT NULL,
		log_index INTEGER NOT NULL,
		address TEXT NOT NULL,
		data TEXT NOT NULL,
		topic0 TEXT,
		topic1 TEXT,
		topic2 TEXT,
		topic3 TEXT,
		removed INTEGER NOT NULL,
		event_name TEXT,
		event_signature TEXT,
		event_standard TEXT,
		decoded_params TEXT
	)`,
	// Resolves spec.md §9 open question 1: a unique index on
	// (transaction_hash, log_index) lets the writer use ON CONFLICT DO
	// NOTHING for logs the same way it does for every other keyed table,
	// at the cost of silently dropping a log re-insert rather than
	// duplicating it. Transfer tables are intentionally left unindexed,
	// as spec.md describes.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_logs_tx_logindex ON logs(transaction_hash, log_index)`,
	`CREATE TABLE IF NOT EXISTS contracts (
		address TEXT PRIMARY KEY,
		creator_address TEXT NOT NULL,
		creation_tx_hash TEXT NOT NULL,
		creation_block_number INTEGER NOT NULL,
		bytecode TEXT NOT NULL,
		is_erc20 INTEGER NOT NULL,
		is_erc721 INTEGER NOT NULL,
		is_erc1155 INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS erc20_tokens (
		address TEXT PRIMARY KEY,
		name TEXT,
		symbol TEXT,
		decimals INTEGER,
		total_supply TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS erc721_tokens (
		address TEXT PRIMARY KEY,
		name TEXT,
		symbol TEXT,
		total_supply TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS erc1155_tokens (
		address TEXT PRIMARY KEY,
		uri TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		address TEXT PRIMARY KEY,
		first_seen_block INTEGER NOT NULL,
		first_seen_tx TEXT NOT NULL,
		is_contract INTEGER NOT NULL,
		tx_count INTEGER NOT NULL,
		balance TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS address_transactions (
		address TEXT NOT NULL,
		transaction_hash TEXT NOT NULL,
		block_number INTEGER NOT NULL,
		is_from INTEGER NOT NULL,
		is_to INTEGER NOT NULL,
		PRIMARY KEY (address, transaction_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS erc20_transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		token_address TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS erc721_transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		token_address TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		token_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS erc1155_transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		token_address TEXT NOT NULL,
		operator TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		token_id TEXT NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS indexer_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		forward_block INTEGER NOT NULL,
		backward_block INTEGER NOT NULL,
		latest_block INTEGER NOT NULL,
		is_synced INTEGER NOT NULL,
		last_updated INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS function_signatures (
		topic_or_selector TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		canonical_signature TEXT NOT NULL,
		type TEXT NOT NULL,
		inputs TEXT NOT NULL,
		outputs TEXT,
		state_mutability TEXT
	)`,
}

// EnsureSchema applies the core runtime schema to db. Safe to call
// repeatedly.
func EnsureSchema(db *sql.DB) error {
	for i, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("writequeue: schema statement %d: %w", i, err)
		}
	}
	return nil
}
