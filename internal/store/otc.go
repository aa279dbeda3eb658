package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

const otcColumns = `id, tick1, tid1, supply, tick2, tid2, er, mba, dl, owner, deploy_time,
			inscription_id, valid, success, received, execute_id`

func scanOTC(row pgx.Row) (*model.OTC, error) {
	var o model.OTC
	err := row.Scan(&o.ID, &o.Tick1, &o.TID1, &o.Supply, &o.Tick2, &o.TID2, &o.ER, &o.MBA, &o.DL,
		&o.Owner, &o.DeployTime, &o.InscriptionID, &o.Valid, &o.Success, &o.Received, &o.ExecuteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan otc: %w", err)
	}
	return &o, nil
}

// OTCByID looks up an OTC order by id (its create inscription number).
func (s *Store) OTCByID(ctx context.Context, id int64) (*model.OTC, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+otcColumns+" FROM otcs WHERE id = $1", id)
	return scanOTC(row)
}

// UpsertOTC inserts or updates an OTC order.
func (s *Store) UpsertOTC(ctx context.Context, o *model.OTC) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO otcs (id, tick1, tid1, supply, tick2, tid2, er, mba, dl, owner, deploy_time,
			inscription_id, valid, success, received, execute_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			valid = excluded.valid,
			success = excluded.success,
			received = excluded.received,
			execute_id = excluded.execute_id
	`, o.ID, o.Tick1, o.TID1, o.Supply, o.Tick2, o.TID2, o.ER, o.MBA, o.DL, o.Owner, o.DeployTime,
		o.InscriptionID, o.Valid, o.Success, o.Received, o.ExecuteID)
	if err != nil {
		return fmt.Errorf("store: upsert otc %d: %w", o.ID, err)
	}
	return nil
}

// OTCRecordsByOID lists every accepted buy against an OTC order.
func (s *Store) OTCRecordsByOID(ctx context.Context, oid int64) ([]*model.OTCRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, oid, inscription_id, address, amount_out, amount_in
		FROM otc_records WHERE oid = $1
	`, oid)
	if err != nil {
		return nil, fmt.Errorf("store: OTCRecordsByOID: %w", err)
	}
	defer rows.Close()

	var out []*model.OTCRecord
	for rows.Next() {
		var r model.OTCRecord
		if err := rows.Scan(&r.ID, &r.OID, &r.InscriptionID, &r.Address, &r.AmountOut, &r.AmountIn); err != nil {
			return nil, fmt.Errorf("store: scan otc record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// InsertOTCRecord records an accepted OTC buy. Records are immutable
// once written, so this is an insert, not an upsert.
func (s *Store) InsertOTCRecord(ctx context.Context, r *model.OTCRecord) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO otc_records (id, oid, inscription_id, address, amount_out, amount_in)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.OID, r.InscriptionID, r.Address, r.AmountOut, r.AmountIn)
	if err != nil {
		return fmt.Errorf("store: insert otc record %s: %w", r.ID, err)
	}
	return nil
}
