package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// UpsertEvent inserts or updates an event by id. The producer calls this
// when it emits an event (handled=true, before MarkBlockEventsUnhandled
// releases the block) and the dispatcher calls it again to persist the
// handler's verdict (handled=true).
func (s *Store) UpsertEvent(ctx context.Context, e *model.Event) error {
	content, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("store: marshal event content: %w", err)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO events (id, event_type, block_height, block_index, timestamp, inscription_id,
			inscription_number, sender, receiver, content, operation, function_id, valid, error, handled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			sender = excluded.sender,
			receiver = excluded.receiver,
			content = excluded.content,
			operation = excluded.operation,
			function_id = excluded.function_id,
			valid = excluded.valid,
			error = excluded.error,
			handled = excluded.handled
	`, e.ID, string(e.EventType), e.BlockHeight, e.BlockIndex, e.Timestamp, e.InscriptionID,
		e.InscriptionNumber, e.Sender, e.Receiver, content, e.Operation, e.FunctionID, e.Valid, e.Error, e.Handled)
	if err != nil {
		return fmt.Errorf("store: upsert event %s: %w", e.ID, err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var eventType string
	var content []byte
	err := row.Scan(&e.ID, &eventType, &e.BlockHeight, &e.BlockIndex, &e.Timestamp, &e.InscriptionID,
		&e.InscriptionNumber, &e.Sender, &e.Receiver, &content, &e.Operation, &e.FunctionID, &e.Valid, &e.Error, &e.Handled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan event: %w", err)
	}
	e.EventType = model.EventType(eventType)
	if len(content) > 0 {
		if err := json.Unmarshal(content, &e.Content); err != nil {
			return nil, fmt.Errorf("store: unmarshal event content: %w", err)
		}
	}
	return &e, nil
}

const eventColumns = `id, event_type, block_height, block_index, timestamp, inscription_id,
			inscription_number, sender, receiver, content, operation, function_id, valid, error, handled`

// EventByID looks up a single event by its opaque id.
func (s *Store) EventByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.conn.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	return scanEvent(row)
}

// EventsByBlock returns every event at a block height, ordered by
// block_index (the dispatcher's canonical replay order).
func (s *Store) EventsByBlock(ctx context.Context, height int64) ([]*model.Event, error) {
	rows, err := s.conn.Query(ctx, "SELECT "+eventColumns+" FROM events WHERE block_height = $1 ORDER BY block_index ASC", height)
	if err != nil {
		return nil, fmt.Errorf("store: EventsByBlock: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MinUnhandledEventBlock returns the lowest block_height among events
// with handled=false, and false if none remain. The coordinator polls
// this to find the next block to dispatch.
func (s *Store) MinUnhandledEventBlock(ctx context.Context) (int64, bool, error) {
	var height *int64
	err := s.conn.QueryRow(ctx, "SELECT MIN(block_height) FROM events WHERE handled = FALSE").Scan(&height)
	if err != nil {
		return 0, false, fmt.Errorf("store: MinUnhandledEventBlock: %w", err)
	}
	if height == nil {
		return 0, false, nil
	}
	return *height, true, nil
}

// MaxEventBlock returns the highest block_height among all events, and
// false if the event log is empty.
func (s *Store) MaxEventBlock(ctx context.Context) (int64, bool, error) {
	var height *int64
	err := s.conn.QueryRow(ctx, "SELECT MAX(block_height) FROM events").Scan(&height)
	if err != nil {
		return 0, false, fmt.Errorf("store: MaxEventBlock: %w", err)
	}
	if height == nil {
		return 0, false, nil
	}
	return *height, true, nil
}

// DeleteEventsWhereHeightGTE deletes every event at or above height,
// used by reorg recovery to discard events from discarded blocks.
func (s *Store) DeleteEventsWhereHeightGTE(ctx context.Context, height int64) error {
	_, err := s.conn.Exec(ctx, "DELETE FROM events WHERE block_height >= $1", height)
	if err != nil {
		return fmt.Errorf("store: DeleteEventsWhereHeightGTE: %w", err)
	}
	return nil
}

// MarkBlockEventsUnhandled flips handled back to false for every event
// at height, the "unmark" half of the emit-then-unmark production
// pattern that releases the block for dispatch.
func (s *Store) MarkBlockEventsUnhandled(ctx context.Context, height int64) error {
	_, err := s.conn.Exec(ctx, "UPDATE events SET handled = FALSE WHERE block_height = $1", height)
	if err != nil {
		return fmt.Errorf("store: MarkBlockEventsUnhandled: %w", err)
	}
	return nil
}

// MarkBlockEventsHandled flips handled to true for every event at
// height. The dispatcher does not use it: it persists each replayed
// event with handled=true through UpsertEvent.
func (s *Store) MarkBlockEventsHandled(ctx context.Context, height int64) error {
	_, err := s.conn.Exec(ctx, "UPDATE events SET handled = TRUE WHERE block_height = $1", height)
	if err != nil {
		return fmt.Errorf("store: MarkBlockEventsHandled: %w", err)
	}
	return nil
}
