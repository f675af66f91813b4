package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Terminator ends every variable-length segment. It is the only byte value a
// segment may not contain, which keeps the byte order of an encoded key equal
// to the lexicographic order of its segments.
const Terminator byte = 0x00

// VersionWidth is the fixed width of an encoded version.
const VersionWidth = 8

// Sentinel errors.
var (
	// ErrShortKey is returned when a key ends before a complete segment or
	// version could be read.
	ErrShortKey = errors.New("encoding: key too short")

	// ErrReservedByte is returned when a segment contains the terminator.
	ErrReservedByte = errors.New("encoding: segment contains reserved byte 0x00")

	// ErrNegativeVersion is returned when a version below zero is encoded.
	ErrNegativeVersion = errors.New("encoding: negative version")
)

// CheckSegment reports whether s can be encoded as a segment.
func CheckSegment(s string) error {
	if strings.IndexByte(s, Terminator) >= 0 {
		return fmt.Errorf("%w: %q", ErrReservedByte, s)
	}
	return nil
}

// AppendSegment appends s followed by the terminator. The caller must have
// validated s with CheckSegment.
func AppendSegment(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, Terminator)
}

// SegmentsLen returns the encoded size of the given segments.
func SegmentsLen(segs ...string) int {
	n := 0
	for _, s := range segs {
		n += len(s) + 1
	}
	return n
}

// DecodeSegment reads one terminated segment from b and returns the
// remainder.
func DecodeSegment(b []byte) ([]byte, string, error) {
	for i, c := range b {
		if c == Terminator {
			return b[i+1:], string(b[:i]), nil
		}
	}
	return nil, "", fmt.Errorf("%w: unterminated segment", ErrShortKey)
}

// AppendVersionDescending appends v as a fixed-width big-endian integer whose
// byte order is the reverse of its numeric order: newer versions sort first.
func AppendVersionDescending(b []byte, v int64) ([]byte, error) {
	if v < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeVersion, v)
	}
	return binary.BigEndian.AppendUint64(b, math.MaxUint64-uint64(v)), nil
}

// DecodeVersionDescending reads a version written by AppendVersionDescending
// and returns the remainder.
func DecodeVersionDescending(b []byte) ([]byte, int64, error) {
	if len(b) < VersionWidth {
		return nil, 0, fmt.Errorf("%w: version needs %d bytes, have %d", ErrShortKey, VersionWidth, len(b))
	}
	rev := math.MaxUint64 - binary.BigEndian.Uint64(b[:VersionWidth])
	if rev > math.MaxInt64 {
		return nil, 0, fmt.Errorf("encoding: version %d out of range", rev)
	}
	return b[VersionWidth:], int64(rev), nil
}

// Successor returns the smallest key that sorts strictly after k.
func Successor(k []byte) []byte {
	s := make([]byte, len(k)+1)
	copy(s, k)
	return s
}
