package handler

import (
	"context"

	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store, giving handler
// tests a seam that needs no Postgres. It copies the handful of store
// methods a handler ever calls; everything else lives behind the Store
// interface in handler.go.
type fakeStore struct {
	tokens   map[int64]*model.Token
	balances map[string]*model.Balance
	pending  map[string]*model.PendingInscriptions
	otcs     map[int64]*model.OTC
	records  map[int64][]*model.OTCRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens:   make(map[int64]*model.Token),
		balances: make(map[string]*model.Balance),
		pending:  make(map[string]*model.PendingInscriptions),
		otcs:     make(map[int64]*model.OTC),
		records:  make(map[int64][]*model.OTCRecord),
	}
}

// snapshot deep-copies every table, for reproducing a backup_all/restore_all
// round trip in tests without a real store.
func (f *fakeStore) snapshot() *fakeStore {
	out := newFakeStore()
	for id, t := range f.tokens {
		cp := *t
		cp.UpgradeRecords = append([]string(nil), t.UpgradeRecords...)
		out.tokens[id] = &cp
	}
	for id, b := range f.balances {
		cp := *b
		out.balances[id] = &cp
	}
	for addr, p := range f.pending {
		cp := *p
		cp.Inscriptions = append([]string(nil), p.Inscriptions...)
		out.pending[addr] = &cp
	}
	for id, o := range f.otcs {
		cp := *o
		out.otcs[id] = &cp
	}
	for oid, rs := range f.records {
		cpRs := make([]*model.OTCRecord, len(rs))
		for i, r := range rs {
			cp := *r
			cpRs[i] = &cp
		}
		out.records[oid] = cpRs
	}
	return out
}

func (f *fakeStore) TokenByID(ctx context.Context, id int64) (*model.Token, error) {
	t, ok := f.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpsertToken(ctx context.Context, t *model.Token) error {
	f.tokens[t.ID] = t
	return nil
}

func (f *fakeStore) BalanceByID(ctx context.Context, id string) (*model.Balance, error) {
	b, ok := f.balances[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) UpsertBalance(ctx context.Context, b *model.Balance) error {
	f.balances[b.ID] = b
	return nil
}

func (f *fakeStore) BatchUpsertBalances(ctx context.Context, balances []*model.Balance) error {
	for _, b := range balances {
		f.balances[b.ID] = b
	}
	return nil
}

func (f *fakeStore) PendingInscriptionsByAddress(ctx context.Context, address string) (*model.PendingInscriptions, error) {
	p, ok := f.pending[address]
	if !ok {
		return &model.PendingInscriptions{ID: address}, nil
	}
	return p, nil
}

func (f *fakeStore) UpsertPendingInscriptions(ctx context.Context, p *model.PendingInscriptions) error {
	f.pending[p.ID] = p
	return nil
}

func (f *fakeStore) OTCByID(ctx context.Context, id int64) (*model.OTC, error) {
	o, ok := f.otcs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) UpsertOTC(ctx context.Context, o *model.OTC) error {
	f.otcs[o.ID] = o
	return nil
}

func (f *fakeStore) OTCRecordsByOID(ctx context.Context, oid int64) ([]*model.OTCRecord, error) {
	return f.records[oid], nil
}

func (f *fakeStore) InsertOTCRecord(ctx context.Context, r *model.OTCRecord) error {
	f.records[r.OID] = append(f.records[r.OID], r)
	return nil
}

var _ Store = (*fakeStore)(nil)
