package dispatcher

import (
	"testing"

	"github.com/zhiying8710/orc20-indexer/internal/model"
)

func TestValidateEnvelopeRejectsUnknownKey(t *testing.T) {
	e := &model.Event{Content: map[string]interface{}{
		"p": "orc-20", "op": "mint", "params": map[string]interface{}{"tid": "1"},
		"extra": "nope",
	}}
	if msg := validateEnvelope(e); msg == "" {
		t.Fatal("expected rejection for unknown envelope key")
	}
}

func TestValidateEnvelopeRejectsWrongProtocol(t *testing.T) {
	e := &model.Event{Content: map[string]interface{}{
		"p": "brc-20", "op": "mint", "params": map[string]interface{}{"tid": "1"},
	}}
	if msg := validateEnvelope(e); msg == "" {
		t.Fatal("expected rejection for wrong protocol")
	}
}

func TestValidateEnvelopeRejectsEmptyParams(t *testing.T) {
	e := &model.Event{Content: map[string]interface{}{
		"p": "orc-20", "op": "mint", "params": map[string]interface{}{},
	}}
	if msg := validateEnvelope(e); msg == "" {
		t.Fatal("expected rejection for empty params")
	}
}

func TestValidateEnvelopeLowercasesOp(t *testing.T) {
	e := &model.Event{Content: map[string]interface{}{
		"p": "orc-20", "op": "MINT", "params": map[string]interface{}{"tid": "1"},
	}}
	if msg := validateEnvelope(e); msg != "" {
		t.Fatalf("unexpected rejection: %s", msg)
	}
	if e.Operation != "mint" {
		t.Fatalf("expected lowercased operation, got %q", e.Operation)
	}
}

func TestDeepCopyContentIsolatesParams(t *testing.T) {
	original := map[string]interface{}{
		"p":  "orc-20",
		"op": "mint",
		"params": map[string]interface{}{
			"tid": "1",
			"amt": "10",
		},
	}
	copied := deepCopyContent(original)

	copied["op"] = "tampered"
	copied["params"].(map[string]interface{})["amt"] = "999"

	if original["op"] != "mint" {
		t.Fatalf("mutating copy leaked into original op: %v", original["op"])
	}
	if original["params"].(map[string]interface{})["amt"] != "10" {
		t.Fatalf("mutating copy leaked into original params: %v", original["params"])
	}
}
