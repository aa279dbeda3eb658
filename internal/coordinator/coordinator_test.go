package coordinator

import (
	"context"
	"testing"
	"time"
)

func TestSleepReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	if err := sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("sleep returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("sleep returned early after %v", elapsed)
	}
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestEventDefaultErrorMatchesOriginal(t *testing.T) {
	if eventDefaultError != "not processed by indexer" {
		t.Fatalf("eventDefaultError = %q, want the original indexer's exact placeholder string", eventDefaultError)
	}
}
