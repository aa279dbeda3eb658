package handler

import (
	"context"
	"fmt"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
)

// OTCBuy accepts a buyer's tick2 payment against an open OTC order.
// Settlement into tick1 happens later, at OTCExecute.
func OTCBuy(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	if e.BlockHeight < cfg.OTCStartBlockHeight {
		return reject(e, "otc function is not available yet")
	}

	p := params(e)
	if err := field.KnownKeys(p, "oid", "tick", "tid", "amt"); err != "" {
		return reject(e, err)
	}

	oid, errMsg := field.ID(p, "oid")
	if errMsg != "" {
		return reject(e, "invalid oid")
	}
	tid, errMsg := field.ID(p, "tid")
	if errMsg != "" {
		return reject(e, "invalid tid")
	}
	e.FunctionID = oid

	if e.EventType == model.EventTypeInscribe {
		return handleInscribe(ctx, e, s, oid)
	}

	tick, errMsg := field.Tick(p, "tick")
	if errMsg != "" {
		return reject(e, "invalid tick")
	}

	pending, isPending, err := requirePending(ctx, s, e.Sender, e.InscriptionID)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if !isPending {
		return reject(e, "inscription is not pending for sender")
	}

	token2, ok, err := loadToken(ctx, s, tid)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if !ok {
		return reject(e, "token not found")
	}
	if tick != token2.Tick {
		return reject(e, "tick is not matched")
	}

	otc, err := s.OTCByID(ctx, oid)
	if err == store.ErrNotFound {
		return reject(e, "otc not found")
	}
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if tid != otc.TID2 {
		return reject(e, "tid is not matched")
	}

	amt, errMsg := field.Amount(p, "amt", token2.Dec, token2.Max, false)
	if errMsg != "" {
		return reject(e, "invalid amt")
	}

	balance2, err := balanceFor(ctx, s, e.Sender, token2)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}

	if !otc.Valid {
		return reject(e, "otc is not valid")
	}
	if otc.DL < e.Timestamp {
		return reject(e, "otc is expired")
	}
	maxReceive := decimalx.Mul(otc.Supply, otc.ER, token2.Dec)
	if otc.Received.Equal(maxReceive) {
		return reject(e, "otc is sold out")
	}
	if amt.LessThan(otc.MBA) {
		return reject(e, "buy amount is less than minimum buy amount")
	}
	available, err := decimalx.Sub(maxReceive, otc.Received, token2.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if available.LessThan(amt) {
		return reject(e, "buy amount is greater than available otc")
	}
	if balance2.AvailableBalance.LessThan(amt) {
		return reject(e, "buy amount is greater than available balance")
	}

	token1, ok, err := loadToken(ctx, s, otc.TID1)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if !ok {
		return reject(e, "token1 not found")
	}

	balance2.AvailableBalance, err = decimalx.Sub(balance2.AvailableBalance, amt, token2.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	balance2.Balance, err = decimalx.Sub(balance2.Balance, amt, token2.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if balance2.Balance.IsZero() {
		token2.Holders--
	}

	otc.Received = decimalx.Add(otc.Received, amt, token2.Dec)
	userReceived := decimalx.Div(amt, otc.ER, token1.Dec)
	record := &model.OTCRecord{
		ID:            e.ID,
		OID:           otc.ID,
		InscriptionID: e.InscriptionID,
		Address:       e.Sender,
		AmountOut:     amt,
		AmountIn:      userReceived,
	}

	pending.Remove(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if err := s.UpsertToken(ctx, token2); err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if err := s.UpsertBalance(ctx, balance2); err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if err := s.UpsertOTC(ctx, otc); err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	if err := s.InsertOTCRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("handler: OTCBuy: %w", err)
	}
	return accept(e)
}
