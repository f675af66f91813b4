// Package kv defines the wide-column store that edge rows are persisted in.
// A store holds cells addressed by (family, row, column). Within a row,
// columns are kept in ascending byte order and can be scanned in pages.
// Every cell carries a timestamp; writes and tombstones resolve per cell by
// last-write-wins.
//
// The package includes an in-memory implementation (with snapshots to a
// storage.Blob), a BadgerDB-backed implementation and a DynamoDB-backed
// implementation.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")

	// ErrInvalidScan is returned when a ScanRequest is malformed.
	ErrInvalidScan = errors.New("kv: invalid scan request")
)

// Mutation is one cell write or tombstone.
type Mutation struct {
	Family string
	Row    []byte
	Column []byte
	Value  []byte

	// Timestamp orders mutations of the same cell. The higher timestamp
	// wins; on a tie a tombstone beats a value.
	Timestamp int64

	// Tombstone marks the cell deleted as of Timestamp.
	Tombstone bool
}

// Column is a live cell returned by Scan.
type Column struct {
	Name      []byte
	Value     []byte
	Timestamp int64
}

// ScanRequest selects one page of a row.
type ScanRequest struct {
	Family string
	Row    []byte

	// Start is the smallest column key returned. Nil starts at the first
	// column of the row.
	Start []byte

	// Limit is the maximum number of columns returned. Must be > 0.
	Limit int
}

func (r ScanRequest) validate() error {
	if r.Family == "" {
		return fmt.Errorf("%w: empty family", ErrInvalidScan)
	}
	if r.Limit <= 0 {
		return fmt.Errorf("%w: limit %d", ErrInvalidScan, r.Limit)
	}
	return nil
}

// Store is the interface for a wide-column store.
type Store interface {
	// Apply applies every mutation of the batch. Each cell resolves
	// independently; there is no atomicity across rows, and an error may
	// leave some mutations applied. Reapplying a batch is safe.
	Apply(ctx context.Context, b *Batch) error

	// Scan returns up to req.Limit live columns of one row whose names are
	// >= req.Start, in ascending byte order. Tombstoned cells are skipped and
	// do not count toward the limit, so a result shorter than the limit
	// means the row has no more columns.
	Scan(ctx context.Context, req ScanRequest) ([]Column, error)

	// Close releases any resources held by the store.
	Close() error
}

// supersedes reports whether a mutation at (ts, tomb) replaces a cell
// currently stored at (curTS, curTomb).
func supersedes(ts int64, tomb bool, curTS int64, curTomb bool) bool {
	switch {
	case ts > curTS:
		return true
	case ts < curTS:
		return false
	default:
		// Tie: a tombstone always wins, a value only replaces a value.
		return tomb || !curTomb
	}
}

// compareCell orders cells by family, then row, then column.
func compareCell(af string, ar, ac []byte, bf string, br, bc []byte) int {
	if af != bf {
		if af < bf {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(ar, br); c != 0 {
		return c
	}
	return bytes.Compare(ac, bc)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
