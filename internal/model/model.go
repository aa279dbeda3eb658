// Package model defines the entities the State Store persists: tokens,
// balances, pending inscriptions, OTC orders, OTC records, events, and the
// backup-height singleton.
package model

import (
	"github.com/shopspring/decimal"
)

// EventType distinguishes the genesis inscription of an ORC-20 intent from
// its completing transfer.
type EventType string

const (
	EventTypeInscribe EventType = "INSCRIBE"
	EventTypeTransfer EventType = "TRANSFER"
)

// Token is keyed by id, the inscription number of its deploy.
type Token struct {
	ID            int64
	Tick          string
	Max           decimal.Decimal
	Lim           decimal.Decimal
	Dec           int32
	UG            bool
	MP            bool
	Deployer      string
	DeployTime    int64
	InscriptionID string

	FirstNumber int64
	FirstID     string
	FirstTime   int64
	LastNumber  int64
	LastID      string
	LastTime    int64

	Minted      decimal.Decimal
	Burned      decimal.Decimal
	Circulating decimal.Decimal
	Holders     int64

	LastUpgradeTime int64
	UpgradeRecords  []string
}

// Balance is keyed by (address, token_id); ID is the derived surrogate key
// "{address}-{token_id}".
type Balance struct {
	ID                   string
	Tick                 string
	TID                  int64
	InscriptionID        string
	Address              string
	Balance              decimal.Decimal
	AvailableBalance     decimal.Decimal
	TransferableBalance  decimal.Decimal
	OriginalBalance      decimal.Decimal
}

// BalanceID derives the surrogate primary key for a Balance row.
func BalanceID(address string, tokenID int64) string {
	return address + "-" + decimalFromInt(tokenID)
}

func decimalFromInt(v int64) string {
	return decimal.NewFromInt(v).String()
}

// PendingInscriptions is keyed by address; Inscriptions is an ordered set
// of inscription ids awaiting a completing transfer.
type PendingInscriptions struct {
	ID           string
	Inscriptions []string
}

// Contains reports whether inscriptionID is present in the pending set.
func (p *PendingInscriptions) Contains(inscriptionID string) bool {
	for _, id := range p.Inscriptions {
		if id == inscriptionID {
			return true
		}
	}
	return false
}

// Append adds inscriptionID to the pending set, idempotently.
func (p *PendingInscriptions) Append(inscriptionID string) {
	if p.Contains(inscriptionID) {
		return
	}
	p.Inscriptions = append(p.Inscriptions, inscriptionID)
}

// Remove deletes inscriptionID from the pending set, if present.
func (p *PendingInscriptions) Remove(inscriptionID string) {
	out := p.Inscriptions[:0]
	for _, id := range p.Inscriptions {
		if id != inscriptionID {
			out = append(out, id)
		}
	}
	p.Inscriptions = out
}

// OTC is keyed by id, the inscription number of its create.
type OTC struct {
	ID            int64
	Tick1         string
	TID1          int64
	Supply        decimal.Decimal
	Tick2         string
	TID2          int64
	ER            decimal.Decimal
	MBA           decimal.Decimal
	DL            int64
	Owner         string
	DeployTime    int64
	InscriptionID string
	Valid         bool
	Success       bool
	Received      decimal.Decimal
	ExecuteID     string
}

// OTCRecord is keyed by event id; one per accepted buy.
type OTCRecord struct {
	ID            string
	OID           int64
	InscriptionID string
	Address       string
	AmountOut     decimal.Decimal
	AmountIn      decimal.Decimal
}

// Event is keyed by an opaque 16-char random id.
type Event struct {
	ID                 string
	EventType          EventType
	BlockHeight         int64
	BlockIndex          int64
	Timestamp           int64
	InscriptionID       string
	InscriptionNumber   int64
	Sender              string
	Receiver            string
	Content             map[string]interface{}
	Operation           string
	FunctionID          int64
	Valid               bool
	Error               string
	Handled             bool
}

// BackupHeight is the singleton row {id=1, block_height}.
type BackupHeight struct {
	ID          int64
	BlockHeight int64
}
