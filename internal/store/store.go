// Package store is the Postgres-backed State Store: the canonical,
// reorg-aware home for tokens, balances, pending inscriptions, OTC
// orders, OTC records, and the event log. It is the only component
// that mutates canonical indexer state.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// conn is the subset of pgxpool.Pool/pgx.Tx every read/write helper in
// this package runs against, so the same query code works whether a
// Store is backed by the real pool or by a scoped-but-never-committed
// transaction (see Preview).
type conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ conn = (*pgxpool.Pool)(nil)
var _ conn = (pgx.Tx)(nil)

// Store wraps a pgx connection pool against the indexer's Postgres
// database. conn serves every query; pool is kept separately since it
// alone can Begin a transaction or Close.
type Store struct {
	conn conn
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{conn: pool, pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Preview runs fn against a Store scoped to a transaction that is
// always rolled back, never committed, and hands fn the resulting
// verdict via its return value. It exists for the Coordinator's
// mempool pass, which must validate pending events against canonical
// state without ever mutating tokens, balances, or OTCs.
func (s *Store) Preview(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin preview: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(&Store{conn: tx, pool: s.pool})
}

// mutableTables lists the tables snapshotted by BackupAll/RestoreAll, in
// the order their FK-free rename must happen. Order does not matter for
// correctness since the rename runs in a single transaction, but keeping
// it fixed makes backup/restore traces easier to read.
var mutableTables = []string{"tokens", "balances", "pending_inscriptions", "otcs", "otc_records"}

// InitSchema creates every table and index used by the indexer, if they
// do not already exist. Monetary columns use NUMERIC(38,18) to hold the
// spec's 38 significant digits at up to 18 fractional places.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		id               BIGINT PRIMARY KEY,
		tick             TEXT NOT NULL,
		max              NUMERIC(38,18) NOT NULL,
		lim              NUMERIC(38,18) NOT NULL,
		dec              SMALLINT NOT NULL,
		ug               BOOLEAN NOT NULL DEFAULT FALSE,
		mp               BOOLEAN NOT NULL DEFAULT FALSE,
		deployer         TEXT NOT NULL,
		deploy_time      BIGINT NOT NULL,
		inscription_id   TEXT NOT NULL,
		first_number     BIGINT NOT NULL DEFAULT 0,
		first_id         TEXT NOT NULL DEFAULT '',
		first_time       BIGINT NOT NULL DEFAULT 0,
		last_number      BIGINT NOT NULL DEFAULT 0,
		last_id          TEXT NOT NULL DEFAULT '',
		last_time        BIGINT NOT NULL DEFAULT 0,
		minted           NUMERIC(38,18) NOT NULL DEFAULT 0,
		burned           NUMERIC(38,18) NOT NULL DEFAULT 0,
		circulating      NUMERIC(38,18) NOT NULL DEFAULT 0,
		holders          BIGINT NOT NULL DEFAULT 0,
		last_upgrade_time BIGINT NOT NULL DEFAULT 0,
		upgrade_records  TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS balances (
		id                   TEXT PRIMARY KEY,
		tick                 TEXT NOT NULL,
		tid                  BIGINT NOT NULL,
		inscription_id       TEXT NOT NULL DEFAULT '',
		address              TEXT NOT NULL,
		balance              NUMERIC(38,18) NOT NULL DEFAULT 0,
		available_balance    NUMERIC(38,18) NOT NULL DEFAULT 0,
		transferable_balance NUMERIC(38,18) NOT NULL DEFAULT 0,
		original_balance     NUMERIC(38,18) NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_balances_tid ON balances(tid);
	CREATE INDEX IF NOT EXISTS idx_balances_address ON balances(address);

	CREATE TABLE IF NOT EXISTS pending_inscriptions (
		id           TEXT PRIMARY KEY,
		inscriptions TEXT[] NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS otcs (
		id             BIGINT PRIMARY KEY,
		tick1          TEXT NOT NULL,
		tid1           BIGINT NOT NULL,
		supply         NUMERIC(38,18) NOT NULL,
		tick2          TEXT NOT NULL,
		tid2           BIGINT NOT NULL,
		er             NUMERIC(38,18) NOT NULL,
		mba            NUMERIC(38,18) NOT NULL,
		dl             BIGINT NOT NULL,
		owner          TEXT NOT NULL,
		deploy_time    BIGINT NOT NULL,
		inscription_id TEXT NOT NULL,
		valid          BOOLEAN NOT NULL DEFAULT TRUE,
		success        BOOLEAN NOT NULL DEFAULT FALSE,
		received       NUMERIC(38,18) NOT NULL DEFAULT 0,
		execute_id     TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS otc_records (
		id             TEXT PRIMARY KEY,
		oid            BIGINT NOT NULL,
		inscription_id TEXT NOT NULL,
		address        TEXT NOT NULL,
		amount_out     NUMERIC(38,18) NOT NULL,
		amount_in      NUMERIC(38,18) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_otc_records_oid ON otc_records(oid);

	CREATE TABLE IF NOT EXISTS events (
		id                 TEXT PRIMARY KEY,
		event_type         TEXT NOT NULL,
		block_height       BIGINT NOT NULL,
		block_index        BIGINT NOT NULL,
		timestamp          BIGINT NOT NULL,
		inscription_id     TEXT NOT NULL,
		inscription_number BIGINT NOT NULL,
		sender             TEXT NOT NULL,
		receiver           TEXT NOT NULL DEFAULT '',
		content            JSONB NOT NULL,
		operation          TEXT NOT NULL DEFAULT '',
		function_id        BIGINT NOT NULL DEFAULT 0,
		valid              BOOLEAN NOT NULL DEFAULT FALSE,
		error              TEXT NOT NULL DEFAULT '',
		handled            BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_events_block_height ON events(block_height);
	CREATE INDEX IF NOT EXISTS idx_events_handled ON events(handled) WHERE handled = FALSE;

	CREATE TABLE IF NOT EXISTS backup_height (
		id           BIGINT PRIMARY KEY,
		block_height BIGINT NOT NULL
	);
	`
	_, err := s.conn.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}
