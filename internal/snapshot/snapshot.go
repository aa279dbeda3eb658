// Package snapshot implements the one-shot genesis loader: it seeds the
// State Store from the static tokens.json/holders.json pair produced
// alongside this indexer's predecessor, so a fresh deployment does not
// have to replay the chain from the protocol's genesis block.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
)

// tokenRecord mirrors the field names of the original token snapshot
// exactly, so tokens.json produced by the prior indexer generation
// loads unmodified.
type tokenRecord struct {
	ID              int64           `json:"id"`
	Tick            string          `json:"tick"`
	Max             decimal.Decimal `json:"max"`
	Lim             decimal.Decimal `json:"lim"`
	Dec             int32           `json:"dec"`
	UG              bool            `json:"ug"`
	MP              bool            `json:"mp"`
	Deployer        string          `json:"deployer"`
	DeployTime      int64           `json:"deploy_time"`
	InscriptionID   string          `json:"inscription_id"`
	FirstNumber     int64           `json:"first_number"`
	FirstID         string          `json:"first_id"`
	FirstTime       int64           `json:"first_time"`
	LastNumber      int64           `json:"last_number"`
	LastID          string          `json:"last_id"`
	LastTime        int64           `json:"last_time"`
	Minted          decimal.Decimal `json:"minted"`
	Burned          decimal.Decimal `json:"burned"`
	Holders         int64           `json:"holders"`
	LastUpgradeTime int64           `json:"last_upgrade_time"`
	UpgradeRecords  []string        `json:"upgrade_records"`
}

// holderRecord mirrors the original balance snapshot's field names.
type holderRecord struct {
	Tick                string          `json:"tick"`
	TID                 int64           `json:"tid"`
	InscriptionID       string          `json:"inscription_id"`
	Address             string          `json:"address"`
	Balance             decimal.Decimal `json:"balance"`
	AvailableBalance    decimal.Decimal `json:"available_balance"`
	TransferableBalance decimal.Decimal `json:"transferable_balance"`
}

// Load reads tokens.json and holders.json from dir and seeds the State
// Store. circulating is derived as minted, and original_balance as
// balance, matching the original generation's snapshot-load behavior.
// Invoked only when Coordinator startup finds no existing backup.
func Load(ctx context.Context, s *store.Store, dir string) error {
	tokensByID, err := loadTokens(filepath.Join(dir, "tokens.json"))
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	holdersByToken, err := loadHolders(filepath.Join(dir, "holders.json"))
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	for _, rec := range tokensByID {
		token := &model.Token{
			ID:              rec.ID,
			Tick:            rec.Tick,
			Max:             rec.Max,
			Lim:             rec.Lim,
			Dec:             rec.Dec,
			UG:              rec.UG,
			MP:              rec.MP,
			Deployer:        rec.Deployer,
			DeployTime:      rec.DeployTime,
			InscriptionID:   rec.InscriptionID,
			FirstNumber:     rec.FirstNumber,
			FirstID:         rec.FirstID,
			FirstTime:       rec.FirstTime,
			LastNumber:      rec.LastNumber,
			LastID:          rec.LastID,
			LastTime:        rec.LastTime,
			Minted:          rec.Minted,
			Burned:          rec.Burned,
			Circulating:     rec.Minted,
			Holders:         rec.Holders,
			LastUpgradeTime: rec.LastUpgradeTime,
			UpgradeRecords:  rec.UpgradeRecords,
		}
		if err := s.UpsertToken(ctx, token); err != nil {
			return fmt.Errorf("snapshot: save token %d: %w", token.ID, err)
		}
	}

	for _, holders := range holdersByToken {
		for _, h := range holders {
			balance := &model.Balance{
				ID:                  model.BalanceID(h.Address, h.TID),
				Tick:                h.Tick,
				TID:                 h.TID,
				InscriptionID:       h.InscriptionID,
				Address:             h.Address,
				Balance:             h.Balance,
				AvailableBalance:    h.AvailableBalance,
				TransferableBalance: h.TransferableBalance,
				OriginalBalance:     h.Balance,
			}
			if err := s.UpsertBalance(ctx, balance); err != nil {
				return fmt.Errorf("snapshot: save balance %s: %w", balance.ID, err)
			}
		}
	}
	return nil
}

func loadTokens(path string) (map[string]tokenRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokens.json: %w", err)
	}
	var records map[string]tokenRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse tokens.json: %w", err)
	}
	return records, nil
}

func loadHolders(path string) (map[string][]holderRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holders.json: %w", err)
	}
	var records map[string][]holderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse holders.json: %w", err)
	}
	return records, nil
}
