// Package upstream is a read-only MySQL client over the `inscription` and
// `inscription_transaction` tables populated by the external inscription
// indexer. This component never writes to MySQL.
package upstream

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Inscription is a row from the upstream `inscription` table.
type Inscription struct {
	ID                int64
	InscriptionID     string
	InscriptionNumber int64
	Owner             string
	ContentType       string
	Content           string
	Timestamp         int64
	GenesisHeight     int64
	Location          string
}

// InscriptionTransaction is a row from the upstream
// `inscription_transaction` table.
type InscriptionTransaction struct {
	ID                int64
	InscriptionID     string
	InscriptionNumber int64
	GenesisTx         bool
	TxID              string
	PrevTxID          string
	PrevOwner         string
	CurrentOwner      string
	Location          string
	BlockHeight       int64
	BlockIndex        int64
	Handled           bool
}

// Store wraps a read-only connection pool to the upstream MySQL database.
type Store struct {
	db *sql.DB
}

// Open connects to MySQL using the go-sql-driver/mysql DSN.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("upstream: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("upstream: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// BlockIndexRange returns the [start, end] block_index range for height,
// per block_index = height*10000 + tx_index_in_block.
func BlockIndexRange(height int64) (int64, int64) {
	return height * 10000, height*10000 + 9999
}

// AllTransactionsHandled reports whether every inscription_transaction row
// in the block's block_index range has handled=true. An empty block (no
// rows at all) counts as handled, so the producer does not stall forever
// on blocks with zero inscription activity.
func (s *Store) AllTransactionsHandled(ctx context.Context, height int64) (bool, error) {
	lo, hi := BlockIndexRange(height)
	var unhandled int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inscription_transaction WHERE block_index BETWEEN ? AND ? AND handled = 0`,
		lo, hi,
	).Scan(&unhandled)
	if err != nil {
		return false, fmt.Errorf("upstream: AllTransactionsHandled: %w", err)
	}
	return unhandled == 0, nil
}

// BlockTransactions loads every inscription_transaction row for a block
// height, ordered by block_index.
func (s *Store) BlockTransactions(ctx context.Context, height int64) ([]InscriptionTransaction, error) {
	lo, hi := BlockIndexRange(height)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inscription_id, inscription_number, genesis_tx, txid, prev_txid,
		       prev_owner, current_owner, location, block_height, block_index, handled
		FROM inscription_transaction
		WHERE block_index BETWEEN ? AND ?
		ORDER BY block_index ASC
	`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("upstream: BlockTransactions: %w", err)
	}
	defer rows.Close()

	var out []InscriptionTransaction
	for rows.Next() {
		var t InscriptionTransaction
		if err := rows.Scan(&t.ID, &t.InscriptionID, &t.InscriptionNumber, &t.GenesisTx, &t.TxID,
			&t.PrevTxID, &t.PrevOwner, &t.CurrentOwner, &t.Location, &t.BlockHeight, &t.BlockIndex, &t.Handled); err != nil {
			return nil, fmt.Errorf("upstream: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InscriptionsByIDs batch-loads inscription rows by inscription_id.
func (s *Store) InscriptionsByIDs(ctx context.Context, ids []string) (map[string]Inscription, error) {
	out := make(map[string]Inscription, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]interface{}, len(ids))
	query := "SELECT id, inscription_id, inscription_number, owner, content_type, content, timestamp, genesis_height, location FROM inscription WHERE inscription_id IN ("
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("upstream: InscriptionsByIDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ins Inscription
		if err := rows.Scan(&ins.ID, &ins.InscriptionID, &ins.InscriptionNumber, &ins.Owner,
			&ins.ContentType, &ins.Content, &ins.Timestamp, &ins.GenesisHeight, &ins.Location); err != nil {
			return nil, fmt.Errorf("upstream: scan: %w", err)
		}
		out[ins.InscriptionID] = ins
	}
	return out, rows.Err()
}
