package kv_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/haivivi/edgestore/pkg/kv"
)

// storeFactory creates a new Store for one test. The same suite runs
// against every backend.
type storeFactory func(t *testing.T) kv.Store

func newMemoryStore(t *testing.T) kv.Store {
	t.Helper()
	s := kv.NewMemory()
	t.Cleanup(func() { s.Close() })
	return s
}

func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("ScanOrder", func(t *testing.T) { testScanOrder(t, newStore(t)) })
	t.Run("ScanStartAndLimit", func(t *testing.T) { testScanStartAndLimit(t, newStore(t)) })
	t.Run("RowIsolation", func(t *testing.T) { testRowIsolation(t, newStore(t)) })
	t.Run("LastWriteWins", func(t *testing.T) { testLastWriteWins(t, newStore(t)) })
	t.Run("TombstoneTie", func(t *testing.T) { testTombstoneTie(t, newStore(t)) })
	t.Run("TombstonesSkipped", func(t *testing.T) { testTombstonesSkipped(t, newStore(t)) })
	t.Run("IdempotentReplay", func(t *testing.T) { testIdempotentReplay(t, newStore(t)) })
	t.Run("InvalidScan", func(t *testing.T) { testInvalidScan(t, newStore(t)) })
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, newMemoryStore)
}

func apply(t *testing.T, s kv.Store, fill func(b *kv.Batch)) {
	t.Helper()
	b := kv.NewBatch(4)
	fill(b)
	if err := s.Apply(context.Background(), b); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func scan(t *testing.T, s kv.Store, family, row string, start []byte, limit int) []kv.Column {
	t.Helper()
	cols, err := s.Scan(context.Background(), kv.ScanRequest{
		Family: family,
		Row:    []byte(row),
		Start:  start,
		Limit:  limit,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return cols
}

func names(cols []kv.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c.Name)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testScanOrder(t *testing.T, s kv.Store) {
	apply(t, s, func(b *kv.Batch) {
		for _, c := range []string{"c", "a", "b\x00", "b", "aa"} {
			b.Put("fam", []byte("row"), []byte(c), []byte("v-"+c), 10)
		}
	})
	got := names(scan(t, s, "fam", "row", nil, 100))
	want := []string{"a", "aa", "b", "b\x00", "c"}
	if !equal(got, want) {
		t.Fatalf("order = %q, want %q", got, want)
	}
	cols := scan(t, s, "fam", "row", nil, 1)
	if string(cols[0].Value) != "v-a" || cols[0].Timestamp != 10 {
		t.Fatalf("first column = %+v", cols[0])
	}
}

func testScanStartAndLimit(t *testing.T, s kv.Store) {
	apply(t, s, func(b *kv.Batch) {
		for i := 0; i < 10; i++ {
			b.Put("fam", []byte("row"), []byte(fmt.Sprintf("c%02d", i)), nil, 1)
		}
	})
	got := names(scan(t, s, "fam", "row", []byte("c03"), 3))
	if !equal(got, []string{"c03", "c04", "c05"}) {
		t.Fatalf("page = %q", got)
	}
	got = names(scan(t, s, "fam", "row", []byte("c085"), 5))
	if !equal(got, []string{"c09"}) {
		t.Fatalf("tail page = %q", got)
	}
	if got := scan(t, s, "fam", "row", []byte("d"), 5); len(got) != 0 {
		t.Fatalf("past end = %q", names(got))
	}
}

func testRowIsolation(t *testing.T, s kv.Store) {
	apply(t, s, func(b *kv.Batch) {
		b.Put("fam", []byte("row"), []byte("x"), nil, 1)
		b.Put("fam", []byte("row2"), []byte("y"), nil, 1)
		b.Put("fam", []byte("ro"), []byte("z"), nil, 1)
		b.Put("other", []byte("row"), []byte("w"), nil, 1)
	})
	if got := names(scan(t, s, "fam", "row", nil, 10)); !equal(got, []string{"x"}) {
		t.Fatalf("fam/row = %q", got)
	}
	if got := names(scan(t, s, "other", "row", nil, 10)); !equal(got, []string{"w"}) {
		t.Fatalf("other/row = %q", got)
	}
	if got := scan(t, s, "fam", "missing", nil, 10); len(got) != 0 {
		t.Fatalf("missing row = %q", names(got))
	}
}

func testLastWriteWins(t *testing.T, s kv.Store) {
	row, col := []byte("row"), []byte("col")
	apply(t, s, func(b *kv.Batch) { b.Put("fam", row, col, []byte("new"), 20) })
	apply(t, s, func(b *kv.Batch) { b.Put("fam", row, col, []byte("old"), 10) })
	cols := scan(t, s, "fam", "row", nil, 10)
	if len(cols) != 1 || string(cols[0].Value) != "new" || cols[0].Timestamp != 20 {
		t.Fatalf("after stale write = %+v", cols)
	}

	// An older tombstone does not delete a newer value.
	apply(t, s, func(b *kv.Batch) { b.Delete("fam", row, col, 15) })
	if cols := scan(t, s, "fam", "row", nil, 10); len(cols) != 1 {
		t.Fatalf("stale tombstone deleted the cell: %+v", cols)
	}

	// A newer tombstone does; a newer write brings the cell back.
	apply(t, s, func(b *kv.Batch) { b.Delete("fam", row, col, 30) })
	if cols := scan(t, s, "fam", "row", nil, 10); len(cols) != 0 {
		t.Fatalf("cell visible after tombstone: %+v", cols)
	}
	apply(t, s, func(b *kv.Batch) { b.Put("fam", row, col, []byte("again"), 40) })
	cols = scan(t, s, "fam", "row", nil, 10)
	if len(cols) != 1 || string(cols[0].Value) != "again" {
		t.Fatalf("after rewrite = %+v", cols)
	}
}

func testTombstoneTie(t *testing.T, s kv.Store) {
	row, col := []byte("row"), []byte("col")
	apply(t, s, func(b *kv.Batch) { b.Put("fam", row, col, nil, 100) })
	apply(t, s, func(b *kv.Batch) { b.Delete("fam", row, col, 100) })
	if cols := scan(t, s, "fam", "row", nil, 10); len(cols) != 0 {
		t.Fatalf("tombstone lost a tie: %+v", cols)
	}
	// A value at the same timestamp does not undo the tombstone.
	apply(t, s, func(b *kv.Batch) { b.Put("fam", row, col, nil, 100) })
	if cols := scan(t, s, "fam", "row", nil, 10); len(cols) != 0 {
		t.Fatalf("value won a tie against a tombstone: %+v", cols)
	}
}

func testTombstonesSkipped(t *testing.T, s kv.Store) {
	apply(t, s, func(b *kv.Batch) {
		for _, c := range []string{"a", "b", "c", "d", "e"} {
			b.Put("fam", []byte("row"), []byte(c), nil, 1)
		}
	})
	apply(t, s, func(b *kv.Batch) {
		b.Delete("fam", []byte("row"), []byte("b"), 2)
		b.Delete("fam", []byte("row"), []byte("c"), 2)
	})
	// Tombstones must not count toward the limit, or a full page would be
	// mistaken for the end of the row.
	got := names(scan(t, s, "fam", "row", nil, 2))
	if !equal(got, []string{"a", "d"}) {
		t.Fatalf("page = %q, want [a d]", got)
	}
}

func testIdempotentReplay(t *testing.T, s kv.Store) {
	b := kv.NewBatch(2)
	b.Put("fam", []byte("row"), []byte("a"), []byte("v"), 5)
	b.Put("fam", []byte("row"), []byte("b"), []byte("v"), 5)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Apply(ctx, b); err != nil {
			t.Fatalf("Apply #%d: %v", i, err)
		}
	}
	if got := names(scan(t, s, "fam", "row", nil, 10)); !equal(got, []string{"a", "b"}) {
		t.Fatalf("after replay = %q", got)
	}
}

func testInvalidScan(t *testing.T, s kv.Store) {
	ctx := context.Background()
	_, err := s.Scan(ctx, kv.ScanRequest{Family: "fam", Row: []byte("r"), Limit: 0})
	if !errors.Is(err, kv.ErrInvalidScan) {
		t.Fatalf("zero limit: expected ErrInvalidScan, got %v", err)
	}
	_, err = s.Scan(ctx, kv.ScanRequest{Row: []byte("r"), Limit: 1})
	if !errors.Is(err, kv.ErrInvalidScan) {
		t.Fatalf("empty family: expected ErrInvalidScan, got %v", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	s := kv.NewMemory()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Apply(ctx, kv.NewBatch(0)); !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("Apply after close: %v", err)
	}
	_, err := s.Scan(ctx, kv.ScanRequest{Family: "f", Limit: 1})
	if !errors.Is(err, kv.ErrClosed) {
		t.Fatalf("Scan after close: %v", err)
	}
}

func TestMemoryCanceledContext(t *testing.T) {
	s := newMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx, kv.ScanRequest{Family: "f", Limit: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryKeepsTombstones(t *testing.T) {
	s := kv.NewMemory()
	defer s.Close()
	apply(t, s, func(b *kv.Batch) {
		b.Put("fam", []byte("row"), []byte("a"), nil, 1)
		b.Delete("fam", []byte("row"), []byte("a"), 2)
		b.Delete("fam", []byte("row"), []byte("b"), 2)
	})
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestBatch(t *testing.T) {
	b := kv.NewBatch(2)
	b.Put("f", []byte("r"), []byte("c"), []byte("v"), 7)
	b.Delete("f", []byte("r"), []byte("d"), 8)

	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	muts := b.Mutations()
	if muts[0].Tombstone || !muts[1].Tombstone {
		t.Fatalf("mutations = %+v", muts)
	}
	if muts[1].Timestamp != 8 || muts[1].Value != nil {
		t.Fatalf("tombstone = %+v", muts[1])
	}

	var nilBatch *kv.Batch
	if nilBatch.Len() != 0 || nilBatch.Mutations() != nil {
		t.Fatal("nil batch is not empty")
	}
}

func TestBatchCopiesKeys(t *testing.T) {
	row, col, val := []byte("r"), []byte("c"), []byte("v")
	b := kv.NewBatch(2)
	b.Put("f", row, col, val, 1)
	b.Delete("g", row, col, 1)

	row[0], col[0], val[0] = 'X', 'X', 'X'
	muts := b.Mutations()
	for _, m := range muts {
		if string(m.Row) != "r" || string(m.Column) != "c" {
			t.Fatalf("mutation aliases caller slices: %+v", m)
		}
	}
	if string(muts[0].Value) != "v" {
		t.Fatalf("value = %q", muts[0].Value)
	}

	muts[0].Column[0] = 'Y'
	if string(muts[1].Column) != "c" {
		t.Fatalf("mutations share a column: %q", muts[1].Column)
	}
}
