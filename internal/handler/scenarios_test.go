package handler

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

func event(op string, params map[string]interface{}) *model.Event {
	return &model.Event{
		ID:        "evt-" + op,
		Operation: op,
		Content: map[string]interface{}{
			"p":      "orc-20",
			"op":     op,
			"params": params,
		},
	}
}

var testCfg = Config{OTCStartBlockHeight: 0}

// TestS1DeployAndMint reproduces the spec's S1 scenario: a deploy
// followed by a mint, checked against the token and balance invariants.
func TestS1DeployAndMint(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	deploy := event("deploy", map[string]interface{}{"tick": "foo", "max": "1000", "lim": "10", "dec": "0"})
	deploy.EventType = model.EventTypeInscribe
	deploy.BlockHeight = 100
	deploy.InscriptionNumber = 5
	deploy.Receiver = "A"

	out, err := Deploy(ctx, deploy, s, testCfg)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if !out.Valid {
		t.Fatalf("expected deploy to be valid, got error %q", out.Error)
	}

	mint := event("mint", map[string]interface{}{"tick": "foo", "tid": "5", "amt": "10"})
	mint.EventType = model.EventTypeInscribe
	mint.BlockHeight = 101
	mint.InscriptionNumber = 6
	mint.Receiver = "B"

	out, err = Mint(ctx, mint, s, testCfg)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !out.Valid {
		t.Fatalf("expected mint to be valid, got error %q", out.Error)
	}

	token, err := s.TokenByID(ctx, 5)
	if err != nil {
		t.Fatalf("TokenByID: %v", err)
	}
	if !token.Minted.Equal(decimal.NewFromInt(10)) || !token.Circulating.Equal(decimal.NewFromInt(10)) || token.Holders != 1 {
		t.Fatalf("token after mint = %+v, want minted=circulating=10, holders=1", token)
	}
	if token.FirstNumber != 6 {
		t.Fatalf("token.FirstNumber = %d, want 6", token.FirstNumber)
	}

	balance, err := s.BalanceByID(ctx, model.BalanceID("B", 5))
	if err != nil {
		t.Fatalf("BalanceByID: %v", err)
	}
	assertBalance(t, balance, "10", "10", "0")

	assertTokenInvariants(t, token)
	assertHoldersInvariant(t, token, s)
}

// TestS2InscribeTransferThenCancel reproduces S2: an inscribe-transfer
// immediately cancelled by a TRANSFER with an empty receiver must leave
// the balance unchanged and the pending set empty.
func TestS2InscribeTransferThenCancel(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	deployAndMint(t, s, "foo", 5, "B", "10")

	inscribe := event("transfer", map[string]interface{}{"tick": "foo", "tid": "5", "amt": "4"})
	inscribe.EventType = model.EventTypeInscribe
	inscribe.BlockHeight = 102
	inscribe.InscriptionID = "insc-transfer-1"
	inscribe.Receiver = "B"

	out, err := Transfer(ctx, inscribe, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("inscribe-transfer failed: err=%v valid=%v error=%q", err, out != nil && out.Valid, out.Error)
	}

	balance, _ := s.BalanceByID(ctx, model.BalanceID("B", 5))
	assertBalance(t, balance, "10", "6", "4")

	cancel := event("transfer", map[string]interface{}{"tick": "foo", "tid": "5", "amt": "4"})
	cancel.EventType = model.EventTypeTransfer
	cancel.BlockHeight = 103
	cancel.InscriptionID = "insc-transfer-1"
	cancel.Sender = "B"
	cancel.Receiver = ""

	out, err = Transfer(ctx, cancel, s, testCfg)
	if err != nil {
		t.Fatalf("cancel transfer: %v", err)
	}
	if !out.Valid {
		t.Fatalf("expected cancel to be valid, got error %q", out.Error)
	}

	balance, _ = s.BalanceByID(ctx, model.BalanceID("B", 5))
	assertBalance(t, balance, "10", "10", "0")

	pending, _ := s.PendingInscriptionsByAddress(ctx, "B")
	if len(pending.Inscriptions) != 0 {
		t.Fatalf("expected empty pending set after cancel, got %v", pending.Inscriptions)
	}
}

// TestS3MintProtected reproduces S3: a mint-protected token rejects a
// non-deployer mint and accepts the deployer's.
func TestS3MintProtected(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	deploy := event("deploy", map[string]interface{}{"tick": "bar", "max": "1000", "lim": "10", "dec": "0", "mp": "true"})
	deploy.EventType = model.EventTypeInscribe
	deploy.InscriptionNumber = 9
	deploy.Receiver = "A"
	if out, err := Deploy(ctx, deploy, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("deploy: err=%v out=%+v", err, out)
	}

	mintByB := event("mint", map[string]interface{}{"tick": "bar", "tid": "9", "amt": "5"})
	mintByB.EventType = model.EventTypeInscribe
	mintByB.Receiver = "B"
	out, err := Mint(ctx, mintByB, s, testCfg)
	if err != nil {
		t.Fatalf("mint by B: %v", err)
	}
	if out.Valid || !strings.Contains(out.Error, "protected") {
		t.Fatalf("expected mint by non-deployer to reject as protected, got valid=%v error=%q", out.Valid, out.Error)
	}

	mintByA := event("mint", map[string]interface{}{"tick": "bar", "tid": "9", "amt": "5"})
	mintByA.EventType = model.EventTypeInscribe
	mintByA.Receiver = "A"
	out, err = Mint(ctx, mintByA, s, testCfg)
	if err != nil {
		t.Fatalf("mint by A: %v", err)
	}
	if !out.Valid {
		t.Fatalf("expected mint by deployer to succeed, got error %q", out.Error)
	}
}

// TestS4OTCFullFill reproduces S4: a buy that exactly exhausts supply*er
// settles as a distribution at execute time.
func TestS4OTCFullFill(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	deployAndMint(t, s, "tick1", 1, "A", "100")
	deployAndMint(t, s, "tick2", 2, "B", "200")

	createInscribe := event("otc-create", map[string]interface{}{
		"tick1": "tick1", "tid1": "1", "tick2": "tick2", "tid2": "2",
		"supply": "100", "er": "2", "dl": "2000", "mba": "10",
	})
	createInscribe.EventType = model.EventTypeInscribe
	createInscribe.InscriptionNumber = 3
	createInscribe.InscriptionID = "insc-otc-create"
	createInscribe.Receiver = "A"
	if out, err := OTCCreate(ctx, createInscribe, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("otc-create inscribe: err=%v out=%+v", err, out)
	}

	createTransfer := event("otc-create", map[string]interface{}{
		"tick1": "tick1", "tid1": "1", "tick2": "tick2", "tid2": "2",
		"supply": "100", "er": "2", "dl": "2000", "mba": "10",
	})
	createTransfer.EventType = model.EventTypeTransfer
	createTransfer.InscriptionNumber = 3
	createTransfer.InscriptionID = "insc-otc-create"
	createTransfer.Sender = "A"
	createTransfer.Timestamp = 1
	out, err := OTCCreate(ctx, createTransfer, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("otc-create transfer: err=%v out=%+v", err, out)
	}

	buyInscribe := event("otc-buy", map[string]interface{}{"oid": "3", "tick": "tick2", "tid": "2", "amt": "200"})
	buyInscribe.EventType = model.EventTypeInscribe
	buyInscribe.InscriptionID = "insc-otc-buy"
	buyInscribe.Receiver = "B"
	if out, err := OTCBuy(ctx, buyInscribe, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("otc-buy inscribe: err=%v out=%+v", err, out)
	}

	buyTransfer := event("otc-buy", map[string]interface{}{"oid": "3", "tick": "tick2", "tid": "2", "amt": "200"})
	buyTransfer.EventType = model.EventTypeTransfer
	buyTransfer.InscriptionID = "insc-otc-buy"
	buyTransfer.Sender = "B"
	out, err = OTCBuy(ctx, buyTransfer, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("otc-buy transfer: err=%v out=%+v", err, out)
	}

	execute := event("otc-execute", map[string]interface{}{"oid": "3"})
	execute.EventType = model.EventTypeInscribe
	execute.Timestamp = 1
	out, err = OTCExecute(ctx, execute, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("otc-execute: err=%v out=%+v", err, out)
	}

	otc, _ := s.OTCByID(ctx, 3)
	if !otc.Success || otc.Valid {
		t.Fatalf("otc after full fill = %+v, want success=true valid=false", otc)
	}

	sellerBalance2, _ := s.BalanceByID(ctx, model.BalanceID("A", 2))
	if !sellerBalance2.Balance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("seller tick2 balance = %s, want 200", sellerBalance2.Balance)
	}
	buyerBalance1, _ := s.BalanceByID(ctx, model.BalanceID("B", 1))
	if !buyerBalance1.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("buyer tick1 balance = %s, want 100", buyerBalance1.Balance)
	}
}

// TestS5OTCExpiredRefund reproduces S5: an order with no buys, executed
// after its deadline, refunds the seller's escrow.
func TestS5OTCExpiredRefund(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	deployAndMint(t, s, "tick1", 1, "A", "100")
	deployAndMint(t, s, "tick2", 2, "B", "200")

	createInscribe := event("otc-create", map[string]interface{}{
		"tick1": "tick1", "tid1": "1", "tick2": "tick2", "tid2": "2",
		"supply": "100", "er": "2", "dl": "1000", "mba": "10",
	})
	createInscribe.EventType = model.EventTypeInscribe
	createInscribe.InscriptionNumber = 3
	createInscribe.InscriptionID = "insc-otc-create"
	createInscribe.Receiver = "A"
	if out, err := OTCCreate(ctx, createInscribe, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("otc-create inscribe: err=%v out=%+v", err, out)
	}
	createTransfer := event("otc-create", map[string]interface{}{
		"tick1": "tick1", "tid1": "1", "tick2": "tick2", "tid2": "2",
		"supply": "100", "er": "2", "dl": "1000", "mba": "10",
	})
	createTransfer.EventType = model.EventTypeTransfer
	createTransfer.InscriptionNumber = 3
	createTransfer.InscriptionID = "insc-otc-create"
	createTransfer.Sender = "A"
	createTransfer.Timestamp = 1
	if out, err := OTCCreate(ctx, createTransfer, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("otc-create transfer: err=%v out=%+v", err, out)
	}

	execute := event("otc-execute", map[string]interface{}{"oid": "3"})
	execute.EventType = model.EventTypeInscribe
	execute.Timestamp = 2000
	out, err := OTCExecute(ctx, execute, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("otc-execute: err=%v out=%+v", err, out)
	}

	otc, _ := s.OTCByID(ctx, 3)
	if otc.Success || otc.Valid {
		t.Fatalf("otc after expired refund = %+v, want success=false valid=false", otc)
	}
	sellerBalance1, _ := s.BalanceByID(ctx, model.BalanceID("A", 1))
	if !sellerBalance1.AvailableBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("seller tick1 available balance = %s, want escrow of 100 returned", sellerBalance1.AvailableBalance)
	}
}

// TestS6ReorgRestoresPreBlockState reproduces S6 at the handler-driven
// storage layer: a snapshot taken before a run of blocks, restored after
// those blocks mutate state, must leave no trace of the intervening
// handler effects.
func TestS6ReorgRestoresPreBlockState(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	deployAndMint(t, s, "foo", 5, "B", "10")

	backup := s.snapshot()

	for i, amt := range []string{"1", "2", "3"} {
		mint := event("mint", map[string]interface{}{"tick": "foo", "tid": "5", "amt": amt})
		mint.EventType = model.EventTypeInscribe
		mint.Receiver = "C"
		mint.BlockHeight = int64(501 + i)
		if out, err := Mint(ctx, mint, s, testCfg); err != nil || !out.Valid {
			t.Fatalf("reorg-range mint %d: err=%v out=%+v", i, err, out)
		}
	}

	tokenAfterReorgRange, _ := s.TokenByID(ctx, 5)
	if tokenAfterReorgRange.Minted.Equal(decimal.NewFromInt(10)) {
		t.Fatal("expected the reorg-range mints to have changed minted before restore")
	}

	*s = *backup.snapshot()

	tokenAfterRestore, _ := s.TokenByID(ctx, 5)
	if !tokenAfterRestore.Minted.Equal(decimal.NewFromInt(10)) || tokenAfterRestore.Holders != 1 {
		t.Fatalf("token after restore = %+v, want identical to pre-reorg-range state (minted=10, holders=1)", tokenAfterRestore)
	}
	if _, err := s.BalanceByID(ctx, model.BalanceID("C", 5)); err == nil {
		t.Fatal("expected no balance for C after restore, its mints never happened in the restored timeline")
	}
}

// deployAndMint is a test helper that deploys tick (dec 0) and mints amt
// to receiver in a single step; the token's id is the caller-supplied id.
func deployAndMint(t *testing.T, s *fakeStore, tick string, id int64, receiver, amt string) {
	t.Helper()
	ctx := context.Background()

	deploy := event("deploy", map[string]interface{}{"tick": tick, "max": "1000000", "lim": "1000000", "dec": "0"})
	deploy.EventType = model.EventTypeInscribe
	deploy.InscriptionNumber = id
	deploy.Receiver = "deployer-" + tick
	if out, err := Deploy(ctx, deploy, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("deployAndMint: deploy %s: err=%v out=%+v", tick, err, out)
	}

	mint := event("mint", map[string]interface{}{"tick": tick, "tid": decimalString(id), "amt": amt})
	mint.EventType = model.EventTypeInscribe
	mint.Receiver = receiver
	if out, err := Mint(ctx, mint, s, testCfg); err != nil || !out.Valid {
		t.Fatalf("deployAndMint: mint %s: err=%v out=%+v", tick, err, out)
	}
}

func decimalString(v int64) string {
	return decimal.NewFromInt(v).String()
}

func assertBalance(t *testing.T, b *model.Balance, balance, available, transferable string) {
	t.Helper()
	if !b.Balance.Equal(decimal.RequireFromString(balance)) ||
		!b.AvailableBalance.Equal(decimal.RequireFromString(available)) ||
		!b.TransferableBalance.Equal(decimal.RequireFromString(transferable)) {
		t.Fatalf("balance = %+v, want {balance:%s, available:%s, transferable:%s}", b, balance, available, transferable)
	}
	if !b.Balance.Equal(b.AvailableBalance.Add(b.TransferableBalance)) {
		t.Fatalf("balance invariant violated: %+v", b)
	}
}

// assertTokenInvariants checks invariant #1: minted-burned=circulating,
// minted<=max, lim<=max.
func assertTokenInvariants(t *testing.T, token *model.Token) {
	t.Helper()
	if !token.Minted.Sub(token.Burned).Equal(token.Circulating) {
		t.Fatalf("invariant violated: minted(%s) - burned(%s) != circulating(%s)", token.Minted, token.Burned, token.Circulating)
	}
	if token.Minted.GreaterThan(token.Max) {
		t.Fatalf("invariant violated: minted(%s) > max(%s)", token.Minted, token.Max)
	}
	if token.Lim.GreaterThan(token.Max) {
		t.Fatalf("invariant violated: lim(%s) > max(%s)", token.Lim, token.Max)
	}
}

// assertHoldersInvariant checks invariant #3: holders equals the count of
// balances for this token with balance > 0.
func assertHoldersInvariant(t *testing.T, token *model.Token, s *fakeStore) {
	t.Helper()
	var count int64
	for _, b := range s.balances {
		if b.TID == token.ID && b.Balance.IsPositive() {
			count++
		}
	}
	if count != token.Holders {
		t.Fatalf("holders invariant violated: token.Holders=%d, actual positive-balance count=%d", token.Holders, count)
	}
}
