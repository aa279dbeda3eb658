// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
	"strings"
)

// HexToBytes converts a hex string (with or without 0x prefix) to
// bytes. Witness items and bitcoind's raw-transaction hex never carry
// the prefix in practice, but tolerating it makes this safe to use
// against either source uniformly.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}
