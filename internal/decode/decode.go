// Package decode converts the textual encodings found in exported flow
// records into typed values.
package decode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"time"
)

var (
	ErrMalformedTimestamp  = errors.New("malformed timestamp")
	ErrMalformedHexAddress = errors.New("malformed hex address")
)

// hexIPv4Len is the width of a 32-bit word written as hex digits.
const hexIPv4Len = 8

// Timestamp parses an RFC 3339 date-time with an explicit offset and up to
// nanosecond fractional precision, e.g. "2025-03-15T17:10:51.064235982Z".
// The result is always in UTC.
func Timestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrMalformedTimestamp, s, err)
	}
	return t.UTC(), nil
}

// HexIPv4 decodes eight hex digits holding a big-endian IPv4 address,
// e.g. "6799ef23" -> 103.153.239.35.
func HexIPv4(s string) (netip.Addr, error) {
	if len(s) != hexIPv4Len {
		return netip.Addr{}, fmt.Errorf("%w %q: want %d hex digits, got %d", ErrMalformedHexAddress, s, hexIPv4Len, len(s))
	}
	var word [4]byte
	if _, err := hex.Decode(word[:], []byte(s)); err != nil {
		return netip.Addr{}, fmt.Errorf("%w %q: %v", ErrMalformedHexAddress, s, err)
	}
	return netip.AddrFrom4(word), nil
}

// OptionalHexIPv4 is HexIPv4 for fields the exporter may omit.
// A nil input means no translation happened and yields nil without error.
func OptionalHexIPv4(s *string) (*netip.Addr, error) {
	if s == nil {
		return nil, nil
	}
	addr, err := HexIPv4(*s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
