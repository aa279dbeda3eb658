package producer

import (
	"testing"

	"github.com/zhiying8710/orc20-indexer/internal/chainclient"
)

func TestNewEventIDLength(t *testing.T) {
	id := newEventID()
	if len(id) != 16 {
		t.Fatalf("expected 16-char id, got %q (%d chars)", id, len(id))
	}
}

func TestNewEventIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newEventID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestRememberHeaderEvictsOldEntries(t *testing.T) {
	p := &Producer{headers: make(map[int64]*chainclient.BitcoinBlockHeader)}
	for h := int64(100); h < 100+headerHistoryDepth+5; h++ {
		p.rememberHeader(h, &chainclient.BitcoinBlockHeader{Height: h})
	}

	if len(p.headers) != headerHistoryDepth {
		t.Fatalf("expected %d headers retained, got %d", headerHistoryDepth, len(p.headers))
	}
	if _, ok := p.headers[100]; ok {
		t.Fatal("expected oldest header to be evicted")
	}
}

func TestErrReorgMessage(t *testing.T) {
	err := &ErrReorg{Height: 800000}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
	if !IsReorg(err) {
		t.Fatal("expected IsReorg to recognize ErrReorg")
	}
}
