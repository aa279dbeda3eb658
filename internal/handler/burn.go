package handler

import (
	"context"
	"fmt"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// Burn is two-phase: the INSCRIBE event only records the pending
// inscription against its receiver (the prospective burner); the actual
// debit happens when that inscription is later spent in a TRANSFER.
func Burn(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	p := params(e)
	if err := field.KnownKeys(p, "tick", "tid", "amt"); err != "" {
		return reject(e, err)
	}

	tid, errMsg := field.ID(p, "tid")
	if errMsg != "" {
		return reject(e, "invalid tid")
	}
	e.FunctionID = tid

	if e.EventType == model.EventTypeInscribe {
		return handleInscribe(ctx, e, s, tid)
	}

	tick, errMsg := field.Tick(p, "tick")
	if errMsg != "" {
		return reject(e, "invalid tick")
	}

	pending, isPending, err := requirePending(ctx, s, e.Sender, e.InscriptionID)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if !isPending {
		return reject(e, "inscription is not pending for sender")
	}

	token, ok, err := loadToken(ctx, s, tid)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if !ok {
		return reject(e, "token not found")
	}
	if tick != token.Tick {
		return reject(e, "tick is not matched")
	}

	amt, errMsg := field.Amount(p, "amt", token.Dec, token.Max, false)
	if errMsg != "" {
		return reject(e, "invalid amt")
	}

	balance, err := balanceFor(ctx, s, e.Sender, token)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if balance.AvailableBalance.LessThan(amt) {
		return reject(e, "burn amount is greater than available balance")
	}

	balance.Balance, err = decimalx.Sub(balance.Balance, amt, token.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	balance.AvailableBalance, err = decimalx.Sub(balance.AvailableBalance, amt, token.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if balance.Balance.IsZero() {
		token.Holders--
	}
	token.Burned = decimalx.Add(token.Burned, amt, token.Dec)
	token.Circulating, err = decimalx.Sub(token.Circulating, amt, token.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}

	pending.Remove(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if err := s.UpsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	if err := s.UpsertBalance(ctx, balance); err != nil {
		return nil, fmt.Errorf("handler: Burn: %w", err)
	}
	return accept(e)
}
