package kv

import "bytes"

// Batch is an ordered list of mutations. It is a plain value: building one
// performs no I/O, and it is only applied when passed to Store.Apply.
// A Batch is not safe for concurrent use.
type Batch struct {
	mutations []Mutation
}

// NewBatch returns an empty batch with room for n mutations.
func NewBatch(n int) *Batch {
	return &Batch{mutations: make([]Mutation, 0, n)}
}

// Put appends a cell write at the given timestamp. The byte slices are
// copied.
func (b *Batch) Put(family string, row, column, value []byte, ts int64) {
	b.mutations = append(b.mutations, Mutation{
		Family:    family,
		Row:       bytes.Clone(row),
		Column:    bytes.Clone(column),
		Value:     bytes.Clone(value),
		Timestamp: ts,
	})
}

// Delete appends a tombstone at the given timestamp. The byte slices are
// copied.
func (b *Batch) Delete(family string, row, column []byte, ts int64) {
	b.mutations = append(b.mutations, Mutation{
		Family:    family,
		Row:       bytes.Clone(row),
		Column:    bytes.Clone(column),
		Timestamp: ts,
		Tombstone: true,
	})
}

// Mutations returns the mutations in append order. The slice must not be
// modified.
func (b *Batch) Mutations() []Mutation {
	if b == nil {
		return nil
	}
	return b.mutations
}

// Len returns the number of mutations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.mutations)
}
