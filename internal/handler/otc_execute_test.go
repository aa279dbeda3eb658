package handler

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

// TestOTCExecuteDistributeDecisionUsesTick2Units pins down the
// distribute-vs-refund decision at the exact boundary case where
// computing it in tid1 units would disagree with computing it in tid2
// units: supply=1000 (tid1 dec 0), er=0.01, mba=5.00 (tid2 dec 2),
// received=9.50. The remaining tid2 capacity is 10.00-9.50=0.50, under
// mba, so the order must distribute even though the tid1-denominated
// "amount left to sell" (1000-950=50) is far above a tid1 number that
// superficially resembles mba.
func TestOTCExecuteDistributeDecisionUsesTick2Units(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	s.tokens[1] = &model.Token{ID: 1, Tick: "tick1", Dec: 0, Max: decimal.NewFromInt(100000)}
	s.tokens[2] = &model.Token{ID: 2, Tick: "tick2", Dec: 2, Max: decimal.NewFromInt(100000)}
	s.otcs[3] = &model.OTC{
		ID: 3, TID1: 1, TID2: 2,
		Supply:   decimal.NewFromInt(1000),
		ER:       decimal.RequireFromString("0.01"),
		MBA:      decimal.RequireFromString("5.00"),
		DL:       1000,
		Owner:    "A",
		Valid:    true,
		Received: decimal.RequireFromString("9.50"),
	}
	s.records[3] = []*model.OTCRecord{
		{ID: "r1", OID: 3, Address: "B", AmountOut: decimal.RequireFromString("9.50"), AmountIn: decimal.NewFromInt(950)},
	}

	execute := event("otc-execute", map[string]interface{}{"oid": "3"})
	execute.EventType = model.EventTypeInscribe
	execute.Timestamp = 1 // well before dl=1000: only reachable if not rejected as "not due"

	out, err := OTCExecute(ctx, execute, s, testCfg)
	if err != nil {
		t.Fatalf("OTCExecute: %v", err)
	}
	if !out.Valid {
		t.Fatalf("expected execute to be accepted (capacity left is under mba), got error %q", out.Error)
	}

	otc, _ := s.OTCByID(ctx, 3)
	if !otc.Success {
		t.Fatalf("expected distribution (tick2 capacity left 0.50 < mba 5.00), got refund: %+v", otc)
	}

	sellerBalance2, _ := s.BalanceByID(ctx, model.BalanceID("A", 2))
	if !sellerBalance2.Balance.Equal(decimal.RequireFromString("9.50")) {
		t.Fatalf("seller tick2 balance = %s, want 9.50", sellerBalance2.Balance)
	}
	buyerBalance1, _ := s.BalanceByID(ctx, model.BalanceID("B", 1))
	if !buyerBalance1.Balance.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("buyer tick1 balance = %s, want 950", buyerBalance1.Balance)
	}
	// Dust: supply(1000) - totalSold(950) = 50 returns to the seller.
	sellerBalance1, _ := s.BalanceByID(ctx, model.BalanceID("A", 1))
	if !sellerBalance1.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("seller tick1 dust balance = %s, want 50", sellerBalance1.Balance)
	}
}

// TestOTCExecuteRefundWhenTick2CapacityStillHigh is the refund-side
// check for the same fix: plenty of tick2 capacity left and the
// deadline has passed, so the order must refund.
func TestOTCExecuteRefundWhenTick2CapacityStillHigh(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	s.tokens[1] = &model.Token{ID: 1, Tick: "tick1", Dec: 0, Max: decimal.NewFromInt(100000)}
	s.tokens[2] = &model.Token{ID: 2, Tick: "tick2", Dec: 2, Max: decimal.NewFromInt(100000)}
	s.otcs[3] = &model.OTC{
		ID: 3, TID1: 1, TID2: 2,
		Supply:   decimal.NewFromInt(1000),
		ER:       decimal.RequireFromString("0.01"),
		MBA:      decimal.RequireFromString("5.00"),
		DL:       100,
		Owner:    "A",
		Valid:    true,
		Received: decimal.RequireFromString("1.00"),
	}

	execute := event("otc-execute", map[string]interface{}{"oid": "3"})
	execute.EventType = model.EventTypeInscribe
	execute.Timestamp = 500 // past dl=100

	out, err := OTCExecute(ctx, execute, s, testCfg)
	if err != nil || !out.Valid {
		t.Fatalf("OTCExecute: err=%v out=%+v", err, out)
	}

	otc, _ := s.OTCByID(ctx, 3)
	if otc.Success {
		t.Fatalf("expected refund (tick2 capacity left 9.00 >= mba 5.00), got distribution: %+v", otc)
	}
	sellerBalance1, _ := s.BalanceByID(ctx, model.BalanceID("A", 1))
	if !sellerBalance1.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("seller tick1 refund balance = %s, want 1000", sellerBalance1.Balance)
	}
}
