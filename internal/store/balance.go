package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

const balanceColumns = `id, tick, tid, inscription_id, address, balance, available_balance,
			transferable_balance, original_balance`

func scanBalance(row pgx.Row) (*model.Balance, error) {
	var b model.Balance
	err := row.Scan(&b.ID, &b.Tick, &b.TID, &b.InscriptionID, &b.Address, &b.Balance,
		&b.AvailableBalance, &b.TransferableBalance, &b.OriginalBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan balance: %w", err)
	}
	return &b, nil
}

// BalanceByID looks up a balance row by its surrogate key
// "{address}-{token_id}".
func (s *Store) BalanceByID(ctx context.Context, id string) (*model.Balance, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE id = $1", id)
	return scanBalance(row)
}

// BalancesByAddress lists every token balance an address holds.
func (s *Store) BalancesByAddress(ctx context.Context, address string) ([]*model.Balance, error) {
	rows, err := s.conn.Query(ctx, "SELECT "+balanceColumns+" FROM balances WHERE address = $1", address)
	if err != nil {
		return nil, fmt.Errorf("store: BalancesByAddress: %w", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

// HoldersByToken lists every nonzero balance row for a token id, used to
// recompute Token.Holders.
func (s *Store) HoldersByToken(ctx context.Context, tokenID int64) ([]*model.Balance, error) {
	rows, err := s.conn.Query(ctx, "SELECT "+balanceColumns+" FROM balances WHERE tid = $1 AND balance > 0", tokenID)
	if err != nil {
		return nil, fmt.Errorf("store: HoldersByToken: %w", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

func collectBalances(rows pgx.Rows) ([]*model.Balance, error) {
	var out []*model.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertBalance inserts or updates a single balance row.
func (s *Store) UpsertBalance(ctx context.Context, b *model.Balance) error {
	return upsertBalance(ctx, s.conn, b)
}

func upsertBalance(ctx context.Context, q conn, b *model.Balance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO balances (id, tick, tid, inscription_id, address, balance, available_balance,
			transferable_balance, original_balance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			inscription_id = excluded.inscription_id,
			balance = excluded.balance,
			available_balance = excluded.available_balance,
			transferable_balance = excluded.transferable_balance,
			original_balance = excluded.original_balance
	`, b.ID, b.Tick, b.TID, b.InscriptionID, b.Address, b.Balance, b.AvailableBalance,
		b.TransferableBalance, b.OriginalBalance)
	if err != nil {
		return fmt.Errorf("store: upsert balance %s: %w", b.ID, err)
	}
	return nil
}

// BatchUpsertBalances upserts many balance rows in a single round trip
// using pgx's batch pipeline, for handlers that touch many holders at
// once (e.g. OTC execute distribution).
func (s *Store) BatchUpsertBalances(ctx context.Context, balances []*model.Balance) error {
	if len(balances) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range balances {
		batch.Queue(`
			INSERT INTO balances (id, tick, tid, inscription_id, address, balance, available_balance,
				transferable_balance, original_balance)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET
				inscription_id = excluded.inscription_id,
				balance = excluded.balance,
				available_balance = excluded.available_balance,
				transferable_balance = excluded.transferable_balance,
				original_balance = excluded.original_balance
		`, b.ID, b.Tick, b.TID, b.InscriptionID, b.Address, b.Balance, b.AvailableBalance,
			b.TransferableBalance, b.OriginalBalance)
	}
	br := s.conn.SendBatch(ctx, batch)
	defer br.Close()
	for range balances {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: BatchUpsertBalances: %w", err)
		}
	}
	return nil
}
