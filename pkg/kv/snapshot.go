package kv

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/edgestore/pkg/storage"
)

// snapshotFormat identifies the layout written by Snapshot.
const snapshotFormat = 1

// maxPrealloc bounds the cell slice sized from an untrusted header.
const maxPrealloc = 1 << 16

// snapshotHeader precedes the cells of a snapshot stream.
type snapshotHeader struct {
	Format int `msgpack:"format"`
	Cells  int `msgpack:"cells"`
}

// Snapshot writes every cell, tombstones included, to b as a msgpack
// stream: one header followed by the cells in key order.
func (m *Memory) Snapshot(ctx context.Context, b storage.Blob) (err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	w, err := b.Create(ctx)
	if err != nil {
		return fmt.Errorf("kv: snapshot %s: %w", b, err)
	}
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("kv: snapshot %s: %w", b, cerr)
		}
	}()

	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(snapshotHeader{Format: snapshotFormat, Cells: m.cells.Len()}); err != nil {
		return fmt.Errorf("kv: snapshot header: %w", err)
	}
	var encErr error
	m.cells.Scan(func(c cell) bool {
		encErr = enc.Encode(c)
		return encErr == nil
	})
	if encErr != nil {
		return fmt.Errorf("kv: snapshot cell: %w", encErr)
	}
	return nil
}

// Restore loads a snapshot written by Snapshot, merging it into the store
// with the usual last-write-wins rules.
func (m *Memory) Restore(ctx context.Context, b storage.Blob) error {
	r, err := b.Open(ctx)
	if err != nil {
		return fmt.Errorf("kv: restore %s: %w", b, err)
	}
	defer r.Close()

	dec := msgpack.NewDecoder(r)
	var hdr snapshotHeader
	if err := dec.Decode(&hdr); err != nil {
		return fmt.Errorf("kv: restore header: %w", err)
	}
	if hdr.Format != snapshotFormat {
		return fmt.Errorf("kv: restore %s: unsupported snapshot format %d", b, hdr.Format)
	}

	if hdr.Cells < 0 {
		return fmt.Errorf("kv: restore %s: negative cell count %d", b, hdr.Cells)
	}
	cells := make([]cell, 0, min(hdr.Cells, maxPrealloc))
	for i := 0; i < hdr.Cells; i++ {
		var c cell
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("kv: restore cell %d: %w", i, err)
		}
		cells = append(cells, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, c := range cells {
		m.applyLocked(Mutation{
			Family:    c.Family,
			Row:       c.Row,
			Column:    c.Column,
			Value:     c.Value,
			Timestamp: c.Timestamp,
			Tombstone: c.Tombstone,
		})
	}
	return nil
}

// RestoreIfExists is Restore, but a missing snapshot is not an error.
func (m *Memory) RestoreIfExists(ctx context.Context, b storage.Blob) error {
	ok, err := b.Exists(ctx)
	if err != nil {
		return fmt.Errorf("kv: restore %s: %w", b, err)
	}
	if !ok {
		return nil
	}
	return m.Restore(ctx, b)
}
