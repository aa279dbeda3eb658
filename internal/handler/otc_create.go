package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// OTCCreate escrows supply of tick1 from the seller and opens an OTC
// order offering it at rate er against tick2, gated to blocks at or
// above the OTC start height. Two-phase: the TRANSFER event performs
// the escrow debit and creates the order.
func OTCCreate(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	if e.BlockHeight < cfg.OTCStartBlockHeight {
		return reject(e, "otc is not enabled at this height")
	}

	p := params(e)
	if err := field.KnownKeys(p, "tick1", "tid1", "tick2", "tid2", "supply", "er", "dl", "mba", "oid"); err != "" {
		return reject(e, err)
	}

	tid1, errMsg := field.ID(p, "tid1")
	if errMsg != "" {
		return reject(e, "invalid tid1")
	}
	tid2, errMsg := field.ID(p, "tid2")
	if errMsg != "" {
		return reject(e, "invalid tid2")
	}

	e.FunctionID = e.InscriptionNumber
	if e.EventType == model.EventTypeInscribe {
		return handleInscribe(ctx, e, s, e.InscriptionNumber)
	}

	tick1, errMsg := field.Tick(p, "tick1")
	if errMsg != "" {
		return reject(e, "invalid tick1")
	}
	tick2, errMsg := field.Tick(p, "tick2")
	if errMsg != "" {
		return reject(e, "invalid tick2")
	}

	pending, isPending, err := requirePending(ctx, s, e.Sender, e.InscriptionID)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if !isPending {
		return reject(e, "inscription is not pending for sender")
	}

	token1, ok, err := loadToken(ctx, s, tid1)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if !ok {
		return reject(e, "token1 not found")
	}
	if tick1 != token1.Tick {
		return reject(e, "tick1 is not matched")
	}
	token2, ok, err := loadToken(ctx, s, tid2)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if !ok {
		return reject(e, "token2 not found")
	}
	if tick2 != token2.Tick {
		return reject(e, "tick2 is not matched")
	}

	supply, errMsg := field.Amount(p, "supply", token1.Dec, token1.Max, false)
	if errMsg != "" {
		return reject(e, "invalid supply")
	}
	er, errMsg := field.Amount(p, "er", token2.Dec, field.MaxAmt, false)
	if errMsg != "" {
		return reject(e, "invalid er")
	}
	dl, errMsg := field.Deadline(p, e.Timestamp)
	if errMsg != "" {
		return reject(e, "invalid dl")
	}
	mba, errMsg := field.MBA(p, token2.Dec, token2.Max)
	if errMsg != "" {
		return reject(e, "invalid mba")
	}

	if decimalx.Mul(supply, er, token2.Dec).LessThan(mba) {
		return reject(e, "invalid config: supply * er < mba")
	}

	sellerBalance, err := balanceFor(ctx, s, e.Sender, token1)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if sellerBalance.AvailableBalance.LessThan(supply) {
		return reject(e, "insufficient available balance to create otc")
	}

	sellerBalance.AvailableBalance, err = decimalx.Sub(sellerBalance.AvailableBalance, supply, token1.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	sellerBalance.Balance, err = decimalx.Sub(sellerBalance.Balance, supply, token1.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if sellerBalance.Balance.IsZero() {
		token1.Holders--
	}

	otc := &model.OTC{
		ID:            e.InscriptionNumber,
		Tick1:         tick1,
		TID1:          tid1,
		Supply:        supply,
		Tick2:         tick2,
		TID2:          tid2,
		ER:            er,
		MBA:           mba,
		DL:            dl,
		Owner:         e.Sender,
		DeployTime:    e.Timestamp,
		InscriptionID: e.InscriptionID,
		Valid:         true,
		Success:       false,
		Received:      decimal.Zero,
	}

	pending.Remove(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if err := s.UpsertToken(ctx, token1); err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if err := s.UpsertBalance(ctx, sellerBalance); err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	if err := s.UpsertOTC(ctx, otc); err != nil {
		return nil, fmt.Errorf("handler: OTCCreate: %w", err)
	}
	return accept(e)
}
