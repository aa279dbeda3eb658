package model

import "testing"

func TestPendingInscriptionsAppendIdempotent(t *testing.T) {
	p := &PendingInscriptions{ID: "bc1q..."}
	p.Append("insc-1")
	p.Append("insc-2")
	p.Append("insc-1")

	if len(p.Inscriptions) != 2 {
		t.Fatalf("expected 2 inscriptions after duplicate append, got %d: %v", len(p.Inscriptions), p.Inscriptions)
	}
	if !p.Contains("insc-1") || !p.Contains("insc-2") {
		t.Fatalf("expected both inscriptions present, got %v", p.Inscriptions)
	}
}

func TestPendingInscriptionsRemove(t *testing.T) {
	p := &PendingInscriptions{Inscriptions: []string{"a", "b", "c"}}
	p.Remove("b")

	if p.Contains("b") {
		t.Fatal("expected b to be removed")
	}
	if !p.Contains("a") || !p.Contains("c") {
		t.Fatalf("expected a and c to remain, got %v", p.Inscriptions)
	}
	if len(p.Inscriptions) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(p.Inscriptions))
	}
}

func TestPendingInscriptionsRemoveAbsent(t *testing.T) {
	p := &PendingInscriptions{Inscriptions: []string{"a", "b"}}
	p.Remove("z")

	if len(p.Inscriptions) != 2 {
		t.Fatalf("expected no change removing absent id, got %v", p.Inscriptions)
	}
}

func TestBalanceID(t *testing.T) {
	got := BalanceID("bc1qaddress", 12345)
	want := "bc1qaddress-12345"
	if got != want {
		t.Fatalf("BalanceID() = %q, want %q", got, want)
	}
}
