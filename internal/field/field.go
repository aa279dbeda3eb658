// Package field implements the strict string-to-typed-value decoders for
// every ORC-20 instruction field. Every parser follows the same return
// convention as the handlers that call them: a zero value plus a non-empty
// reason string on failure.
package field

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zhiying8710/orc20-indexer/internal/decimalx"
)

// MaxAmt is the largest value any "amt"-shaped field may take absent a
// tighter caller-supplied limit: 2^64-1 in the integer part plus 18
// fractional nines.
var MaxAmt = decimal.RequireFromString("18446744073709551615.999999999999999999")

// Params is the decoded `params` object of an ORC-20 instruction.
type Params map[string]interface{}

// Tick parses and lowercases a tick field: non-empty, UTF-8, <=255 bytes
// after lowercasing.
func Tick(p Params, key string) (string, string) {
	raw, ok := p[key]
	if !ok {
		return "", key + " is required"
	}
	s, ok := raw.(string)
	if !ok {
		return "", key + " must be a string"
	}
	tick := strings.ToLower(s)
	if len(tick) == 0 || len(tick) > 255 {
		return "", key + " must be 1-255 bytes"
	}
	return tick, ""
}

// ID parses an integer-string field (tid/oid) into an int64.
func ID(p Params, key string) (int64, string) {
	raw, ok := p[key]
	if !ok {
		return 0, key + " is required"
	}
	s, ok := raw.(string)
	if !ok {
		return 0, key + " must be a string"
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, key + " is not a valid integer"
	}
	return v, ""
}

// Dec parses the optional "dec" field, defaulting to 18, range [0,18].
func Dec(p Params) (int32, string) {
	raw, ok := p["dec"]
	if !ok {
		return 18, ""
	}
	s, ok := raw.(string)
	if !ok {
		return 0, "dec must be a string"
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, "dec is not a valid integer"
	}
	if v < 0 || v > int(decimalx.MaxDec) {
		return 0, "dec must be between 0 and 18"
	}
	return int32(v), ""
}

// Bool parses an optional lowercased "true"/"false" field (ug/mp),
// defaulting to false when absent.
func Bool(p Params, key string) (bool, string) {
	raw, ok := p[key]
	if !ok {
		return false, ""
	}
	s, ok := raw.(string)
	if !ok {
		return false, key + " must be a string"
	}
	switch strings.ToLower(s) {
	case "true":
		return true, ""
	case "false":
		return false, ""
	default:
		return false, key + " must be true or false"
	}
}

// Deadline parses the "dl" field: an integer string strictly greater than
// the event timestamp.
func Deadline(p Params, timestamp int64) (int64, string) {
	raw, ok := p["dl"]
	if !ok {
		return 0, "dl is required"
	}
	s, ok := raw.(string)
	if !ok {
		return 0, "dl must be a string"
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, "dl is not a valid integer"
	}
	if v <= timestamp {
		return 0, "dl must be in the future"
	}
	return v, ""
}

// Amount parses a decimal field (amt/supply/max/lim/mba/er) with strict
// ORC-20 rules: no sign characters, no leading/trailing dot, fractional
// digits <= dec, value in [0, lim], zero rejected unless beZero is true.
func Amount(p Params, key string, dec int32, lim decimal.Decimal, beZero bool) (decimal.Decimal, string) {
	raw, ok := p[key]
	if !ok {
		return decimal.Decimal{}, key + " is required"
	}
	s, ok := raw.(string)
	if !ok {
		return decimal.Decimal{}, key + " must be a string"
	}
	if strings.ContainsAny(s, "+-") {
		return decimal.Decimal{}, key + " must not contain a sign"
	}

	if strings.Contains(s, ".") {
		if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
			return decimal.Decimal{}, key + " must not start or end with '.'"
		}
		frac := s[strings.IndexByte(s, '.')+1:]
		if int32(len(frac)) > dec {
			return decimal.Decimal{}, key + " has too many fractional digits"
		}
	}

	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, key + " is not a valid decimal"
	}

	if amt.GreaterThan(lim) || amt.IsNegative() {
		return decimal.Decimal{}, key + " is out of range"
	}
	if !beZero && amt.IsZero() {
		return decimal.Decimal{}, key + " must not be zero"
	}

	return amt, ""
}

// Lim parses the optional "lim" field, defaulting to 1 when absent and
// default is true; when default is false, absence is an error.
func Lim(p Params, dec int32, max decimal.Decimal, defaultToOne bool) (decimal.Decimal, string) {
	if _, ok := p["lim"]; !ok {
		if defaultToOne {
			return decimal.RequireFromString("1"), ""
		}
		return decimal.Decimal{}, "lim is required"
	}
	return Amount(p, "lim", dec, max, false)
}

// MBA parses the optional "mba" field, defaulting to 1 when absent.
func MBA(p Params, dec int32, max decimal.Decimal) (decimal.Decimal, string) {
	if _, ok := p["mba"]; !ok {
		return decimal.RequireFromString("1"), ""
	}
	return Amount(p, "mba", dec, max, false)
}

// OptionalAmount parses an optional decimal field, returning present=false
// when the key is absent. Unlike the tri-state None the original indexer
// returns from its optional field parsers (which conflates "absent" with
// "present but malformed"), a present-but-invalid value is always a hard
// parse error here: upgrade fields that fail validation are rejected
// rather than silently skipped.
func OptionalAmount(p Params, key string, dec int32, lim decimal.Decimal) (decimal.Decimal, bool, string) {
	if _, ok := p[key]; !ok {
		return decimal.Decimal{}, false, ""
	}
	v, errMsg := Amount(p, key, dec, lim, false)
	if errMsg != "" {
		return decimal.Decimal{}, true, errMsg
	}
	return v, true, ""
}

// OptionalBool parses an optional "true"/"false" field, returning
// present=false when the key is absent. See OptionalAmount for why a
// present-but-malformed value is a hard error rather than a silent skip.
func OptionalBool(p Params, key string) (bool, bool, string) {
	if _, ok := p[key]; !ok {
		return false, false, ""
	}
	v, errMsg := Bool(p, key)
	if errMsg != "" {
		return false, true, errMsg
	}
	return v, true, ""
}

// KnownKeys validates that params contains only keys from the allowed set;
// an unknown key is a parse error.
func KnownKeys(p Params, allowed ...string) string {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	for k := range p {
		if _, ok := set[k]; !ok {
			return "unknown param: " + k
		}
	}
	return ""
}
