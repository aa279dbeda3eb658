package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// Transfer is two-phase, but unlike the other two-phase operations its
// INSCRIBE phase already moves funds: amt is reserved out of the
// inscriber's available_balance into transferable_balance, so it can no
// longer be spent by any other pending inscription while this one is in
// flight. The TRANSFER phase settles the reservation against whoever
// received the inscription.
func Transfer(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	p := params(e)
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
		return nil, fmt.Errorf("handler: Transfer: %w", err)
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

	if e.EventType == model.EventTypeInscribe {
		return inscribeTransfer(ctx, e, s, token, amt)
	}
	return completeTransfer(ctx, e, s, token, amt)
}

// inscribeTransfer reserves amt from the inscriber's available balance
// and records the pending inscription, per the original's
// process_inscribe.
func inscribeTransfer(ctx context.Context, e *model.Event, s Store, token *model.Token, amt decimal.Decimal) (*model.Event, error) {
	balance, err := balanceFor(ctx, s, e.Receiver, token)
	if err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	if balance.AvailableBalance.LessThan(amt) {
		return reject(e, "inscribe transfer amount is greater than available balance")
	}

	balance.AvailableBalance, err = decimalx.Sub(balance.AvailableBalance, amt, token.Dec)
	if err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	balance.TransferableBalance = decimalx.Add(balance.TransferableBalance, amt, token.Dec)
	if err := s.UpsertBalance(ctx, balance); err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}

	pending, err := s.PendingInscriptionsByAddress(ctx, e.Receiver)
	if err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	pending.Append(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	return accept(e)
}

// completeTransfer settles a previously-inscribed transfer when its
// pending inscription is spent. An empty receiver means the spend
// cancelled the transfer back to its own sender.
func completeTransfer(ctx context.Context, e *model.Event, s Store, token *model.Token, amt decimal.Decimal) (*model.Event, error) {
	senderPending, isPending, err := requirePending(ctx, s, e.Sender, e.InscriptionID)
	if err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	if !isPending {
		return reject(e, "inscription is not pending for sender")
	}

	receiver := e.Receiver
	if receiver == "" {
		receiver = e.Sender
	}

	senderBalance, err := balanceFor(ctx, s, e.Sender, token)
	if err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}

	if e.Sender == receiver {
		senderBalance.AvailableBalance = decimalx.Add(senderBalance.AvailableBalance, amt, token.Dec)
		senderBalance.TransferableBalance, err = decimalx.Sub(senderBalance.TransferableBalance, amt, token.Dec)
		if err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
		if err := s.UpsertBalance(ctx, senderBalance); err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
	} else {
		receiverBalance, err := balanceFor(ctx, s, receiver, token)
		if err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}

		senderBalance.TransferableBalance, err = decimalx.Sub(senderBalance.TransferableBalance, amt, token.Dec)
		if err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
		senderBalance.Balance, err = decimalx.Sub(senderBalance.Balance, amt, token.Dec)
		if err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
		if senderBalance.Balance.IsZero() {
			token.Holders--
		}

		if receiverBalance.Balance.IsZero() {
			token.Holders++
		}
		receiverBalance.AvailableBalance = decimalx.Add(receiverBalance.AvailableBalance, amt, token.Dec)
		receiverBalance.Balance = decimalx.Add(receiverBalance.Balance, amt, token.Dec)

		if err := s.UpsertBalance(ctx, senderBalance); err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
		if err := s.UpsertBalance(ctx, receiverBalance); err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
		if err := s.UpsertToken(ctx, token); err != nil {
			return nil, fmt.Errorf("handler: Transfer: %w", err)
		}
	}

	senderPending.Remove(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, senderPending); err != nil {
		return nil, fmt.Errorf("handler: Transfer: %w", err)
	}
	return accept(e)
}
