// Package handler implements the eight ORC-20 instruction handlers:
// deploy, mint, burn, transfer, upgrade, otc-create, otc-buy, and
// otc-execute. Each handler validates an event's params against current
// state and, if valid, mutates tokens/balances/pending
// inscriptions/OTC orders through the State Store. A handler's return
// value is always the same event with valid/error/function_id filled
// in; a non-nil error return means an infrastructure failure (a failed
// store call), never a business-rule rejection.
package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
)

// Config carries the handler-visible subset of process configuration.
type Config struct {
	OTCStartBlockHeight int64
}

// Store is the subset of the State Store a handler needs: tokens,
// balances, pending inscriptions, and OTC orders/records. Handlers
// never see the event log or backup/restore, so *store.Store is
// narrowed to this interface at the handler boundary, which also gives
// tests a seam to substitute an in-memory fake.
type Store interface {
	TokenByID(ctx context.Context, id int64) (*model.Token, error)
	UpsertToken(ctx context.Context, t *model.Token) error

	BalanceByID(ctx context.Context, id string) (*model.Balance, error)
	UpsertBalance(ctx context.Context, b *model.Balance) error
	BatchUpsertBalances(ctx context.Context, balances []*model.Balance) error

	PendingInscriptionsByAddress(ctx context.Context, address string) (*model.PendingInscriptions, error)
	UpsertPendingInscriptions(ctx context.Context, p *model.PendingInscriptions) error

	OTCByID(ctx context.Context, id int64) (*model.OTC, error)
	UpsertOTC(ctx context.Context, o *model.OTC) error
	OTCRecordsByOID(ctx context.Context, oid int64) ([]*model.OTCRecord, error)
	InsertOTCRecord(ctx context.Context, r *model.OTCRecord) error
}

var _ Store = (*store.Store)(nil)

// Func is the shape every instruction handler implements.
type Func func(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error)

// Registry maps a lowercased ORC-20 "op" value to its handler. The
// Dispatcher looks up op here after validating the envelope.
var Registry = map[string]Func{
	"deploy":      Deploy,
	"mint":        Mint,
	"burn":        Burn,
	"transfer":    Transfer,
	"upgrade":     Upgrade,
	"otc-create":  OTCCreate,
	"otc-buy":     OTCBuy,
	"otc-execute": OTCExecute,
}

func reject(e *model.Event, reason string) (*model.Event, error) {
	e.Valid = false
	e.Error = reason
	return e, nil
}

func accept(e *model.Event) (*model.Event, error) {
	e.Valid = true
	e.Error = ""
	return e, nil
}

// handleInscribe is the shared INSCRIBE-phase handler for the five
// two-phase operations (burn, transfer, upgrade, otc-create, otc-buy):
// it records the pending inscription against the event's receiver and
// waits for the completing TRANSFER. Appending is idempotent, so a
// re-dispatched INSCRIBE event (reorg replay) is harmless.
func handleInscribe(ctx context.Context, e *model.Event, s Store, functionID int64) (*model.Event, error) {
	pending, err := s.PendingInscriptionsByAddress(ctx, e.Receiver)
	if err != nil {
		return nil, fmt.Errorf("handler: handleInscribe: load pending: %w", err)
	}
	pending.Append(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: handleInscribe: save pending: %w", err)
	}
	e.FunctionID = functionID
	return accept(e)
}

// requirePending loads address's pending set and confirms inscriptionID
// is a member, the gate every TRANSFER-phase handler applies before it
// may mutate state.
func requirePending(ctx context.Context, s Store, address, inscriptionID string) (*model.PendingInscriptions, bool, error) {
	pending, err := s.PendingInscriptionsByAddress(ctx, address)
	if err != nil {
		return nil, false, fmt.Errorf("handler: requirePending: %w", err)
	}
	return pending, pending.Contains(inscriptionID), nil
}

// balanceFor loads the (address, token) balance, returning a zero-value
// row (not an error) when the pair has never transacted before.
func balanceFor(ctx context.Context, s Store, address string, token *model.Token) (*model.Balance, error) {
	id := model.BalanceID(address, token.ID)
	b, err := s.BalanceByID(ctx, id)
	if err == store.ErrNotFound {
		return &model.Balance{
			ID:      id,
			Tick:    token.Tick,
			TID:     token.ID,
			Address: address,
			Balance: decimal.Zero, AvailableBalance: decimal.Zero,
			TransferableBalance: decimal.Zero, OriginalBalance: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("handler: balanceFor: %w", err)
	}
	return b, nil
}

func loadToken(ctx context.Context, s Store, id int64) (*model.Token, bool, error) {
	t, err := s.TokenByID(ctx, id)
	if err == store.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("handler: loadToken: %w", err)
	}
	return t, true, nil
}

// params is a convenience accessor for event.Content["params"], matching
// the original indexer's event.content.get("params", {}) default.
func params(e *model.Event) field.Params {
	raw, ok := e.Content["params"]
	if !ok {
		return field.Params{}
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return field.Params{}
	}
	return field.Params(m)
}
