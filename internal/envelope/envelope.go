// Package envelope extracts the (content-type, payload) pair from a Bitcoin
// witness byte stream carrying an "ord" inscription envelope. It never
// trusts the witness layout: sentinel position, pushdata lengths, and body
// termination are all bounds-checked, and a malformed envelope yields no
// result rather than a partial one.
package envelope

import (
	"encoding/base64"
	"errors"

	"github.com/btcsuite/btcd/txscript"
)

// sentinel is the byte sequence `OP_FALSE OP_IF <3 bytes "ord">` that
// opens every inscription envelope.
var sentinel = []byte{0x00, 0x63, 0x03, 'o', 'r', 'd'}

// opEndIf terminates the envelope body.
const opEndIf = byte(txscript.OP_ENDIF)

// opZero both opens the body section (after the content-type map) and is
// byte-identical to OP_0/OP_FALSE.
const opZero = byte(txscript.OP_FALSE)

// ErrNoEnvelope is returned when the sentinel sequence is absent.
var ErrNoEnvelope = errors.New("envelope: no ord sentinel found")

// ErrMalformed is returned when the envelope structure cannot be parsed
// (truncated pushdata, missing terminator, etc).
var ErrMalformed = errors.New("envelope: malformed structure")

// contentTypeKey is the single-byte pushdata key ("\x01") preceding the
// content-type value in the metadata map.
const contentTypeKey = "\x01"

// Result is the decoded envelope payload.
type Result struct {
	ContentType string
	// Body is the base64 encoding of the raw inscription body, matching
	// the distilled spec's wire representation.
	Body string
}

// Decode scans witness for the ord sentinel and extracts the content type
// and base64-encoded body. It returns ErrNoEnvelope if the sentinel is
// absent, or ErrMalformed if the structure following it cannot be parsed.
func Decode(witness []byte) (*Result, error) {
	idx := indexOf(witness, sentinel)
	if idx < 0 {
		return nil, ErrNoEnvelope
	}

	r := &reader{buf: witness, pos: idx + len(sentinel)}

	contentType := ""
	for {
		if r.atEnd() {
			return nil, ErrMalformed
		}
		if r.buf[r.pos] == opZero {
			r.pos++
			break
		}

		key, err := r.readPushdata()
		if err != nil {
			return nil, err
		}
		value, err := r.readPushdata()
		if err != nil {
			return nil, err
		}
		if string(key) == contentTypeKey {
			contentType = string(value)
		}
	}

	var body []byte
	for {
		if r.atEnd() {
			return nil, ErrMalformed
		}
		if r.buf[r.pos] == opEndIf {
			r.pos++
			break
		}
		chunk, err := r.readPushdata()
		if err != nil {
			return nil, err
		}
		body = append(body, chunk...)
	}

	return &Result{
		ContentType: contentType,
		Body:        base64.StdEncoding.EncodeToString(body),
	}, nil
}

// reader walks a pushdata-encoded byte stream.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEnd() bool {
	return r.pos >= len(r.buf)
}

// readPushdata reads one pushdata item per the ord envelope's length
// semantics: 1..=75 is an inline length byte; opcodes 76/77/78 introduce a
// 1/2/4-byte little-endian length prefix (OP_PUSHDATA1/2/4).
func (r *reader) readPushdata() ([]byte, error) {
	if r.atEnd() {
		return nil, ErrMalformed
	}
	op := r.buf[r.pos]
	r.pos++

	var length int
	switch {
	case op >= 1 && op <= 75:
		length = int(op)
	case op == txscript.OP_PUSHDATA1:
		if r.pos+1 > len(r.buf) {
			return nil, ErrMalformed
		}
		length = int(r.buf[r.pos])
		r.pos++
	case op == txscript.OP_PUSHDATA2:
		if r.pos+2 > len(r.buf) {
			return nil, ErrMalformed
		}
		length = int(r.buf[r.pos]) | int(r.buf[r.pos+1])<<8
		r.pos += 2
	case op == txscript.OP_PUSHDATA4:
		if r.pos+4 > len(r.buf) {
			return nil, ErrMalformed
		}
		length = int(r.buf[r.pos]) | int(r.buf[r.pos+1])<<8 |
			int(r.buf[r.pos+2])<<16 | int(r.buf[r.pos+3])<<24
		r.pos += 4
	default:
		return nil, ErrMalformed
	}

	if length < 0 || r.pos+length > len(r.buf) {
		return nil, ErrMalformed
	}
	value := r.buf[r.pos : r.pos+length]
	r.pos += length
	return value, nil
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
