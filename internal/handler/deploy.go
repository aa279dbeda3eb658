package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// Deploy creates a new token keyed by the deploying inscription's
// number. Deploy is a single-event operation: it only ever runs on an
// INSCRIBE event, since the instruction is self-contained and needs no
// completing spend.
func Deploy(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	p := params(e)
	e.FunctionID = e.InscriptionNumber

	if e.EventType == model.EventTypeTransfer {
		return reject(e, "deploy does not accept a transfer event")
	}

	if err := field.KnownKeys(p, "tick", "max", "lim", "dec", "ug", "mp", "tid"); err != "" {
		return reject(e, err)
	}

	tick, errMsg := field.Tick(p, "tick")
	if errMsg != "" {
		return reject(e, "invalid tick")
	}
	dec, errMsg := field.Dec(p)
	if errMsg != "" {
		return reject(e, "invalid dec")
	}
	max, errMsg := field.Amount(p, "max", dec, field.MaxAmt, false)
	if errMsg != "" {
		return reject(e, "invalid max")
	}
	lim, errMsg := field.Lim(p, dec, max, true)
	if errMsg != "" {
		return reject(e, "invalid lim")
	}
	ug, errMsg := field.Bool(p, "ug")
	if errMsg != "" {
		return reject(e, "invalid ug")
	}
	mp, errMsg := field.Bool(p, "mp")
	if errMsg != "" {
		return reject(e, "invalid mp")
	}

	token := &model.Token{
		ID:            e.InscriptionNumber,
		Tick:          tick,
		Max:           max,
		Lim:           lim,
		Dec:           dec,
		UG:            ug,
		MP:            mp,
		Deployer:      e.Receiver,
		DeployTime:    e.Timestamp,
		InscriptionID: e.InscriptionID,
		Minted:        decimal.Zero,
		Burned:        decimal.Zero,
		Circulating:   decimal.Zero,
	}
	if err := s.UpsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("handler: Deploy: %w", err)
	}
	return accept(e)
}
