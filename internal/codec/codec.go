// Package codec decodes typed values from fixed byte offsets inside
// vendor record buffers. Records are fixed-length, ASCII-numeric where
// numeric and Shift-JIS where textual.
package codec

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/japanese"
)

// ErrShortBuffer is returned when a field's declared span falls outside
// the buffer.
type ErrShortBuffer struct {
	Need, Have int
}

func (e *ErrShortBuffer) Error() string {
	return fmt.Sprintf("codec: buffer too short (need %d bytes, have %d)", e.Need, e.Have)
}

// slice returns the raw bytes for (offset, length) or an error when the
// buffer is shorter than the field's span.
func slice(buf []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return nil, &ErrShortBuffer{Need: offset + length, Have: len(buf)}
	}
	return buf[offset : offset+length], nil
}

// ASCIIInt decodes an ASCII digit run padded with spaces on either side
// and with leading zeroes. Empty or all-space fields decode to null. A
// non-digit byte yields null plus ok=false so the caller can count a
// field-level warning without rejecting the record.
func ASCIIInt(buf []byte, offset, length int) (Value, bool, error) {
	raw, err := slice(buf, offset, length)
	if err != nil {
		return Null, false, err
	}
	digits := bytes.TrimSpace(raw)
	if len(digits) == 0 {
		return Null, true, nil
	}
	digits = bytes.TrimLeft(digits, "0")
	if len(digits) == 0 {
		// All zeroes.
		return Int(0), true, nil
	}
	var n int64
	for _, b := range digits {
		if b < '0' || b > '9' {
			return Null, false, nil
		}
		n = n*10 + int64(b-'0')
	}
	return Int(n), true, nil
}

// ASCIIReal decodes an ASCII integer and divides it by 10^scale.
// Odds, training times and weights are stored by the vendor with an
// implicit decimal point (e.g. "0035" at scale 1 is 3.5).
func ASCIIReal(buf []byte, offset, length, scale int) (Value, bool, error) {
	v, ok, err := ASCIIInt(buf, offset, length)
	if err != nil || !ok || v.IsNull() {
		return Null, ok, err
	}
	if scale <= 0 {
		return Real(float64(v.Int())), true, nil
	}
	return Real(float64(v.Int()) / math.Pow10(scale)), true, nil
}

// SJISText decodes a Shift-JIS field to UTF-8 and trims trailing ASCII
// spaces. Invalid multi-byte sequences fall back to a byte-preserving
// single-byte decode so that no record is lost to encoding damage.
func SJISText(buf []byte, offset, length int) (Value, error) {
	raw, err := slice(buf, offset, length)
	if err != nil {
		return Null, err
	}
	// Decoders are stateful; one per call keeps this safe for
	// concurrent parsers.
	s, derr := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	if derr != nil || bytes.ContainsRune(s, '�') {
		return Text(fallbackDecode(raw)), nil
	}
	return Text(strings.TrimRight(string(s), " ")), nil
}

// fallbackDecode maps each byte to the Unicode codepoint of the same
// value. ASCII subsequences survive byte-for-byte; bytes >= 0x80 become
// U+0080..U+00FF so the original byte values stay recoverable.
func fallbackDecode(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		sb.WriteRune(rune(b))
	}
	return strings.TrimRight(sb.String(), " ")
}

// Group is one repetition of a fixed-length sub-layout.
type Group struct {
	Index int // 0-based repetition index
	Buf   []byte
}

// Repeat slices a composite field that repeats a fixed-length sub-layout
// count times starting at offset. The repeat count is a parser-declared
// constant, so a short buffer is a caller error, not data damage.
func Repeat(buf []byte, offset, unit, count int) ([]Group, error) {
	raw, err := slice(buf, offset, unit*count)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, count)
	for i := 0; i < count; i++ {
		groups[i] = Group{Index: i, Buf: raw[i*unit : (i+1)*unit]}
	}
	return groups, nil
}
