package store

import "testing"

func TestMutableTablesOrder(t *testing.T) {
	want := []string{"tokens", "balances", "pending_inscriptions", "otcs", "otc_records"}
	if len(mutableTables) != len(want) {
		t.Fatalf("len(mutableTables) = %d, want %d", len(mutableTables), len(want))
	}
	for i, name := range want {
		if mutableTables[i] != name {
			t.Errorf("mutableTables[%d] = %q, want %q", i, mutableTables[i], name)
		}
	}
}
