package kv

import (
	"bytes"
	"context"
	"sync"

	"github.com/tidwall/btree"
)

// cell is one stored column, live or tombstoned.
type cell struct {
	Family    string `msgpack:"f"`
	Row       []byte `msgpack:"r"`
	Column    []byte `msgpack:"c"`
	Value     []byte `msgpack:"v,omitempty"`
	Timestamp int64  `msgpack:"ts"`
	Tombstone bool   `msgpack:"del,omitempty"`
}

func cellLess(a, b cell) bool {
	return compareCell(a.Family, a.Row, a.Column, b.Family, b.Row, b.Column) < 0
}

// Memory is an in-memory Store implementation backed by an ordered B-tree.
// It is safe for concurrent use. Tombstones are retained until the store is
// discarded, as a real column store keeps them until compaction.
type Memory struct {
	mu     sync.RWMutex
	cells  *btree.BTreeG[cell]
	closed bool
}

// NewMemory creates a new, empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		cells: btree.NewBTreeGOptions(cellLess, btree.Options{NoLocks: true}),
	}
}

func (m *Memory) Apply(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, mu := range b.Mutations() {
		m.applyLocked(mu)
	}
	return nil
}

func (m *Memory) applyLocked(mu Mutation) {
	c := cell{
		Family:    mu.Family,
		Row:       clone(mu.Row),
		Column:    clone(mu.Column),
		Timestamp: mu.Timestamp,
		Tombstone: mu.Tombstone,
	}
	if !mu.Tombstone {
		c.Value = clone(mu.Value)
	}
	if cur, ok := m.cells.Get(c); ok && !supersedes(c.Timestamp, c.Tombstone, cur.Timestamp, cur.Tombstone) {
		return
	}
	m.cells.Set(c)
}

func (m *Memory) Scan(ctx context.Context, req ScanRequest) ([]Column, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	pivot := cell{Family: req.Family, Row: req.Row, Column: req.Start}
	var out []Column
	m.cells.Ascend(pivot, func(c cell) bool {
		if c.Family != req.Family || !bytes.Equal(c.Row, req.Row) {
			return false
		}
		if c.Tombstone {
			return true
		}
		out = append(out, Column{
			Name:      clone(c.Column),
			Value:     clone(c.Value),
			Timestamp: c.Timestamp,
		})
		return len(out) < req.Limit
	})
	return out, nil
}

// Len returns the number of stored cells, tombstones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cells.Len()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
