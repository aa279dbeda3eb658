package handler

import (
	"context"
	"fmt"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// Mint credits amt of an existing token to its receiver, subject to the
// token's per-mint limit, max supply, and mint-protection flag. Like
// Deploy, mint is single-event: nothing about it requires a completing
// transfer.
func Mint(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	p := params(e)

	if e.EventType == model.EventTypeTransfer {
		return reject(e, "mint does not accept a transfer event")
	}
	if err := field.KnownKeys(p, "tick", "tid", "amt"); err != "" {
		return reject(e, err)
	}

	tid, errMsg := field.ID(p, "tid")
	if errMsg != "" {
		return reject(e, "invalid tid")
	}
	e.FunctionID = tid

	tick, errMsg := field.Tick(p, "tick")
	if errMsg != "" {
		return reject(e, "invalid tick")
	}

	token, ok, err := loadToken(ctx, s, tid)
	if err != nil {
		return nil, fmt.Errorf("handler: Mint: %w", err)
	}
	if !ok {
		return reject(e, "token not found")
	}
	if tick != token.Tick {
		return reject(e, "tick is not matched")
	}

	amt, errMsg := field.Amount(p, "amt", token.Dec, token.Lim, false)
	if errMsg != "" {
		return reject(e, "invalid amt")
	}

	if token.MP && e.Receiver != token.Deployer {
		return reject(e, "token minting is protected and minter is not deployer")
	}
	remaining, err := decimalx.Sub(token.Max, token.Minted, token.Dec)
	if err != nil {
		return reject(e, "token minting is over max")
	}
	if remaining.LessThan(amt) {
		return reject(e, "token minting is over max")
	}

	balance, err := balanceFor(ctx, s, e.Receiver, token)
	if err != nil {
		return nil, fmt.Errorf("handler: Mint: %w", err)
	}

	if token.Minted.IsZero() {
		token.FirstNumber = e.InscriptionNumber
		token.FirstTime = e.Timestamp
		token.FirstID = e.InscriptionID
	}
	if remaining.Equal(amt) {
		token.LastNumber = e.InscriptionNumber
		token.LastTime = e.Timestamp
		token.LastID = e.InscriptionID
	}
	token.Minted = decimalx.Add(token.Minted, amt, token.Dec)
	token.Circulating = decimalx.Add(token.Circulating, amt, token.Dec)

	if balance.Balance.IsZero() {
		token.Holders++
	}
	balance.Balance = decimalx.Add(balance.Balance, amt, token.Dec)
	balance.AvailableBalance = decimalx.Add(balance.AvailableBalance, amt, token.Dec)

	if err := s.UpsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("handler: Mint: %w", err)
	}
	if err := s.UpsertBalance(ctx, balance); err != nil {
		return nil, fmt.Errorf("handler: Mint: %w", err)
	}
	return accept(e)
}
