package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sirupsen/logrus"

	"github.com/dando385/evm-indexer/internal/assembler"
	"github.com/dando385/evm-indexer/internal/config"
	"github.com/dando385/evm-indexer/internal/decoder"
	"github.com/dando385/evm-indexer/internal/evmrpc"
	"github.com/dando385/evm-indexer/internal/syncer"
	"github.com/dando385/evm-indexer/internal/writequeue"
)

// deps bundles every collaborator the run subcommand needs, assembled
// the way the teacher's single-file exercises inline their dependencies.
// status does not use it; it only loads config and calls openDB.
type deps struct {
	cfg    config.Config
	db     *sql.DB
	client *evmrpc.Client
	log    *logrus.Entry
}

func newLogger() *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrus.NewEntry(l)
}

func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database %s: %w", cfg.DBDriver, cfg.DBDSN, err)
	}
	if err := writequeue.EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return db, nil
}

// buildDeps loads config, opens the database, and dials the RPC
// client. Any failure here is spec §7's "Configuration" error kind:
// fatal, logged, non-zero exit.
func buildDeps(ctx context.Context, configPath string) (*deps, error) {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	client, err := evmrpc.New(ctx, cfg.RPCURL, cfg.MaxRPCBatch, cfg.RetryAttempts, retryDelay, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dialing rpc: %w", err)
	}

	return &deps{cfg: cfg, db: db, client: client, log: log}, nil
}

func (d *deps) close() {
	d.client.Close()
	d.db.Close()
}

// buildRegistry wires the hard-coded standard events plus any optional
// function_signatures overlay persisted in the database (spec §4.4).
func buildRegistry(ctx context.Context, db *sql.DB, log *logrus.Entry) *decoder.Registry {
	registry := decoder.NewRegistry()
	rows, err := decoder.LoadEventSignaturesFromDB(ctx, db)
	if err != nil {
		log.WithError(err).Warn("loading function_signatures overlay failed, continuing with built-ins only")
		return registry
	}
	registry.LoadSignatureRows(rows)
	return registry
}

func buildSyncer(d *deps) *syncer.Syncer {
	registry := buildRegistry(context.Background(), d.db, d.log)
	asm := assembler.New(d.client, registry, d.cfg.ReceiptConcurrency, d.cfg.TokenProbeFanout, d.log)
	queue := writequeue.New(d.db, d.cfg.QueueHighWater, d.cfg.WriterConcurrency, d.cfg.WriteBatchSize, d.log)
	queue.SetDrainTimeout(d.cfg.RPCTimeout)
	return syncer.New(d.client, asm, queue, d.db, d.cfg, d.log)
}
