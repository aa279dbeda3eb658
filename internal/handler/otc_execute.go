package handler

import (
	"context"
	"fmt"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
)

// OTCExecute is single-phase: it settles an OTC order once its deadline has
// passed, or as soon as the tick2 it can still take in (supply*er minus
// received) is below the minimum buy amount. Settlement is a distribution
// when that remaining tick2 capacity is below the minimum buy amount
// (buyers get their tick1, the seller gets the accumulated tick2 plus any
// unsold tick1) and a refund otherwise (the deadline passed with at least
// the minimum buy amount of tick2 capacity left).
func OTCExecute(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	if e.BlockHeight < cfg.OTCStartBlockHeight {
		return reject(e, "otc function is not available yet")
	}
	if e.EventType == model.EventTypeTransfer {
		return reject(e, "otc-execute does not take a transfer")
	}

	p := params(e)
	if err := field.KnownKeys(p, "oid"); err != "" {
		return reject(e, err)
	}
	oid, errMsg := field.ID(p, "oid")
	if errMsg != "" {
		return reject(e, "invalid oid")
	}
	e.FunctionID = oid

	otc, err := s.OTCByID(ctx, oid)
	if err == store.ErrNotFound {
		return reject(e, "otc not found")
	}
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if !otc.Valid {
		return reject(e, "otc is not valid")
	}

	token1, ok, err := loadToken(ctx, s, otc.TID1)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if !ok {
		return reject(e, "token1 not found")
	}
	token2, ok, err := loadToken(ctx, s, otc.TID2)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if !ok {
		return reject(e, "token2 not found")
	}

	maxReceive := decimalx.Mul(otc.Supply, otc.ER, token2.Dec)
	tick2Left, err := decimalx.Sub(maxReceive, otc.Received, token2.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if otc.DL > e.Timestamp && tick2Left.GreaterThanOrEqual(otc.MBA) {
		return reject(e, "otc is not due for execution")
	}

	records, err := s.OTCRecordsByOID(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}

	sellerBalance1, err := balanceFor(ctx, s, otc.Owner, token1)
	if err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	touched := map[string]*model.Balance{sellerBalance1.ID: sellerBalance1}

	getBalance := func(address string, token *model.Token, id string) (*model.Balance, error) {
		if b, ok := touched[id]; ok {
			return b, nil
		}
		b, err := balanceFor(ctx, s, address, token)
		if err != nil {
			return nil, err
		}
		touched[b.ID] = b
		return b, nil
	}

	if tick2Left.LessThan(otc.MBA) {
		// Distribute: the remaining tick2 capacity is below the minimum buy
		// amount. The seller receives the accumulated tick2; each buyer
		// receives the tick1 their buy converts to; supply minus the tick1
		// owed to buyers returns to the seller.
		sellerBalance2, err := getBalance(otc.Owner, token2, model.BalanceID(otc.Owner, token2.ID))
		if err != nil {
			return nil, fmt.Errorf("handler: OTCExecute: %w", err)
		}
		if sellerBalance2.Balance.IsZero() {
			token2.Holders++
		}
		sellerBalance2.Balance = decimalx.Add(sellerBalance2.Balance, otc.Received, token2.Dec)
		sellerBalance2.AvailableBalance = decimalx.Add(sellerBalance2.AvailableBalance, otc.Received, token2.Dec)

		totalSold := decimalx.Zero(token1.Dec)
		for _, r := range records {
			buyerBalance1, err := getBalance(r.Address, token1, model.BalanceID(r.Address, token1.ID))
			if err != nil {
				return nil, fmt.Errorf("handler: OTCExecute: %w", err)
			}
			if buyerBalance1.Balance.IsZero() {
				token1.Holders++
			}
			buyerBalance1.Balance = decimalx.Add(buyerBalance1.Balance, r.AmountIn, token1.Dec)
			buyerBalance1.AvailableBalance = decimalx.Add(buyerBalance1.AvailableBalance, r.AmountIn, token1.Dec)
			totalSold = decimalx.Add(totalSold, r.AmountIn, token1.Dec)
		}

		if totalSold.LessThan(otc.Supply) {
			leftover, err := decimalx.Sub(otc.Supply, totalSold, token1.Dec)
			if err != nil {
				return nil, fmt.Errorf("handler: OTCExecute: %w", err)
			}
			if sellerBalance1.Balance.IsZero() {
				token1.Holders++
			}
			sellerBalance1.Balance = decimalx.Add(sellerBalance1.Balance, leftover, token1.Dec)
			sellerBalance1.AvailableBalance = decimalx.Add(sellerBalance1.AvailableBalance, leftover, token1.Dec)
		}
		otc.Success = true
	} else {
		// Refund: the deadline passed with at least the minimum buy amount
		// of tick2 capacity left. The seller gets the whole escrow back, each
		// buyer gets the tick2 they paid in returned.
		if sellerBalance1.Balance.IsZero() {
			token1.Holders++
		}
		sellerBalance1.Balance = decimalx.Add(sellerBalance1.Balance, otc.Supply, token1.Dec)
		sellerBalance1.AvailableBalance = decimalx.Add(sellerBalance1.AvailableBalance, otc.Supply, token1.Dec)

		for _, r := range records {
			buyerBalance2, err := getBalance(r.Address, token2, model.BalanceID(r.Address, token2.ID))
			if err != nil {
				return nil, fmt.Errorf("handler: OTCExecute: %w", err)
			}
			if buyerBalance2.Balance.IsZero() {
				token2.Holders++
			}
			buyerBalance2.Balance = decimalx.Add(buyerBalance2.Balance, r.AmountOut, token2.Dec)
			buyerBalance2.AvailableBalance = decimalx.Add(buyerBalance2.AvailableBalance, r.AmountOut, token2.Dec)
		}
		otc.Success = false
	}

	otc.Valid = false
	otc.ExecuteID = e.InscriptionID

	balances := make([]*model.Balance, 0, len(touched))
	for _, b := range touched {
		balances = append(balances, b)
	}
	if err := s.BatchUpsertBalances(ctx, balances); err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if err := s.UpsertToken(ctx, token1); err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if err := s.UpsertToken(ctx, token2); err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	if err := s.UpsertOTC(ctx, otc); err != nil {
		return nil, fmt.Errorf("handler: OTCExecute: %w", err)
	}
	return accept(e)
}
