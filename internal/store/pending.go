package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// PendingInscriptionsByAddress returns the address's pending set, or a
// zero-value PendingInscriptions (empty set, not an error) if the
// address has never had one.
func (s *Store) PendingInscriptionsByAddress(ctx context.Context, address string) (*model.PendingInscriptions, error) {
	var p model.PendingInscriptions
	err := s.conn.QueryRow(ctx, "SELECT id, inscriptions FROM pending_inscriptions WHERE id = $1", address).
		Scan(&p.ID, &p.Inscriptions)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.PendingInscriptions{ID: address}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: PendingInscriptionsByAddress: %w", err)
	}
	return &p, nil
}

// UpsertPendingInscriptions persists an address's pending set. A fully
// emptied set is still upserted (not deleted), mirroring the upstream
// model's always-present-row convention.
func (s *Store) UpsertPendingInscriptions(ctx context.Context, p *model.PendingInscriptions) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO pending_inscriptions (id, inscriptions) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET inscriptions = excluded.inscriptions
	`, p.ID, p.Inscriptions)
	if err != nil {
		return fmt.Errorf("store: upsert pending inscriptions %s: %w", p.ID, err)
	}
	return nil
}
