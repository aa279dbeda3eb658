package handler

import (
	"context"
	"fmt"

	"github.com/zhiying8710/orc20-indexer/internal/field"
	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// Upgrade is two-phase and deployer-gated: only the token's original
// deployer may spend the pending upgrade inscription, and only onto a
// token that declared itself upgradable at deploy time.
func Upgrade(ctx context.Context, e *model.Event, s Store, cfg Config) (*model.Event, error) {
	p := params(e)
	if err := field.KnownKeys(p, "tick", "tid", "max", "lim", "ug", "mp"); err != "" {
		return reject(e, err)
	}
	_, hasMax := p["max"]
	_, hasLim := p["lim"]
	_, hasUG := p["ug"]
	_, hasMP := p["mp"]
	if !hasMax && !hasLim && !hasUG && !hasMP {
		return reject(e, "max & lim & ug & mp cannot be none in upgrade operation at the same time")
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
		return nil, fmt.Errorf("handler: Upgrade: %w", err)
	}
	if !isPending {
		return reject(e, "inscription is not pending for sender")
	}

	token, ok, err := loadToken(ctx, s, tid)
	if err != nil {
		return nil, fmt.Errorf("handler: Upgrade: %w", err)
	}
	if !ok {
		return reject(e, "token not found")
	}
	if tick != token.Tick {
		return reject(e, "tick is not matched")
	}
	if e.Sender != token.Deployer {
		return reject(e, "sender is not deployer")
	}
	if !token.UG {
		return reject(e, "token is not upgradable")
	}

	newMax, maxPresent, errMsg := field.OptionalAmount(p, "max", token.Dec, field.MaxAmt)
	if errMsg != "" {
		return reject(e, "invalid max")
	}
	limCeiling := token.Max
	if maxPresent {
		limCeiling = newMax
	}
	newLim, limPresent, errMsg := field.OptionalAmount(p, "lim", token.Dec, limCeiling)
	if errMsg != "" {
		return reject(e, "invalid lim")
	}
	newUG, ugPresent, errMsg := field.OptionalBool(p, "ug")
	if errMsg != "" {
		return reject(e, "invalid ug")
	}
	newMP, mpPresent, errMsg := field.OptionalBool(p, "mp")
	if errMsg != "" {
		return reject(e, "invalid mp")
	}

	if maxPresent && !newMax.GreaterThan(token.Max) {
		return reject(e, "max is not enabled to increase")
	}

	if maxPresent {
		token.Max = newMax
	}
	if limPresent {
		token.Lim = newLim
	}
	if mpPresent {
		token.MP = newMP
	}
	if ugPresent {
		token.UG = newUG
	}
	token.LastUpgradeTime = e.Timestamp
	token.UpgradeRecords = append(token.UpgradeRecords, e.InscriptionID)

	pending.Remove(e.InscriptionID)
	if err := s.UpsertPendingInscriptions(ctx, pending); err != nil {
		return nil, fmt.Errorf("handler: Upgrade: %w", err)
	}
	if err := s.UpsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("handler: Upgrade: %w", err)
	}
	return accept(e)
}
