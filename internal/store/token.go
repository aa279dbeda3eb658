package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// ErrNotFound is returned when a lookup by primary key or natural key
// finds no row.
var ErrNotFound = errors.New("store: not found")

// UpsertToken inserts or updates a token by id.
func (s *Store) UpsertToken(ctx context.Context, t *model.Token) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO tokens (
			id, tick, max, lim, dec, ug, mp, deployer, deploy_time, inscription_id,
			first_number, first_id, first_time, last_number, last_id, last_time,
			minted, burned, circulating, holders, last_upgrade_time, upgrade_records
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
			max = excluded.max,
			lim = excluded.lim,
			dec = excluded.dec,
			ug = excluded.ug,
			mp = excluded.mp,
			first_number = excluded.first_number,
			first_id = excluded.first_id,
			first_time = excluded.first_time,
			last_number = excluded.last_number,
			last_id = excluded.last_id,
			last_time = excluded.last_time,
			minted = excluded.minted,
			burned = excluded.burned,
			circulating = excluded.circulating,
			holders = excluded.holders,
			last_upgrade_time = excluded.last_upgrade_time,
			upgrade_records = excluded.upgrade_records
	`,
		t.ID, t.Tick, t.Max, t.Lim, t.Dec, t.UG, t.MP, t.Deployer, t.DeployTime, t.InscriptionID,
		t.FirstNumber, t.FirstID, t.FirstTime, t.LastNumber, t.LastID, t.LastTime,
		t.Minted, t.Burned, t.Circulating, t.Holders, t.LastUpgradeTime, t.UpgradeRecords,
	)
	if err != nil {
		return fmt.Errorf("store: upsert token %d: %w", t.ID, err)
	}
	return nil
}

func scanToken(row pgx.Row) (*model.Token, error) {
	var t model.Token
	err := row.Scan(
		&t.ID, &t.Tick, &t.Max, &t.Lim, &t.Dec, &t.UG, &t.MP, &t.Deployer, &t.DeployTime, &t.InscriptionID,
		&t.FirstNumber, &t.FirstID, &t.FirstTime, &t.LastNumber, &t.LastID, &t.LastTime,
		&t.Minted, &t.Burned, &t.Circulating, &t.Holders, &t.LastUpgradeTime, &t.UpgradeRecords,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan token: %w", err)
	}
	return &t, nil
}

const tokenColumns = `id, tick, max, lim, dec, ug, mp, deployer, deploy_time, inscription_id,
			first_number, first_id, first_time, last_number, last_id, last_time,
			minted, burned, circulating, holders, last_upgrade_time, upgrade_records`

// TokenByID looks up a token by its primary key (deploy inscription
// number).
func (s *Store) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+tokenColumns+" FROM tokens WHERE id = $1", id)
	return scanToken(row)
}

// TokenByTick looks up a token by its case-sensitive tick.
func (s *Store) TokenByTick(ctx context.Context, tick string) (*model.Token, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+tokenColumns+" FROM tokens WHERE tick = $1", tick)
	return scanToken(row)
}
