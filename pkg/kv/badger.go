package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger key layout:
//
//	{family} 0x00 {len(row) uint32 BE} {row} {column}  → {flags:1}{ts:8 BE}{value}
//
// The row length prefix keeps rows of one family from sharing a key prefix,
// so a row scan is a plain badger prefix scan.

const (
	badgerHeaderLen    = 9
	flagTombstone      = 0x01
	maxConflictRetries = 5
)

// Badger is a Store implementation backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Logger receives badger's warnings and errors. If nil, slog.Default()
	// is used. Badger's info output is logged at debug level.
	Logger *slog.Logger
}

// NewBadger creates a new BadgerDB-backed Store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, errors.New("kv: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	logger := bopts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogLogger{l: logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func badgerRowPrefix(family string, row []byte) ([]byte, error) {
	if family == "" || strings.IndexByte(family, 0) >= 0 {
		return nil, fmt.Errorf("kv: invalid family %q", family)
	}
	p := make([]byte, 0, len(family)+5+len(row))
	p = append(p, family...)
	p = append(p, 0)
	p = binary.BigEndian.AppendUint32(p, uint32(len(row)))
	return append(p, row...), nil
}

func encodeBadgerValue(mu Mutation) []byte {
	v := make([]byte, badgerHeaderLen, badgerHeaderLen+len(mu.Value))
	if mu.Tombstone {
		v[0] = flagTombstone
	} else {
		v = append(v, mu.Value...)
	}
	binary.BigEndian.PutUint64(v[1:badgerHeaderLen], uint64(mu.Timestamp))
	return v
}

func decodeBadgerHeader(v []byte) (ts int64, tomb bool, err error) {
	if len(v) < badgerHeaderLen {
		return 0, false, fmt.Errorf("kv: corrupt badger cell: %d byte value", len(v))
	}
	return int64(binary.BigEndian.Uint64(v[1:badgerHeaderLen])), v[0]&flagTombstone != 0, nil
}

func (b *Badger) Apply(ctx context.Context, batch *Batch) error {
	muts := batch.Mutations()
	for len(muts) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := b.applyChunk(muts)
		if err != nil {
			return err
		}
		muts = muts[n:]
	}
	return nil
}

// applyChunk applies as many leading mutations as fit in one transaction
// and returns how many were applied.
func (b *Badger) applyChunk(muts []Mutation) (int, error) {
	var applied int
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		applied = 0
		err = b.db.Update(func(txn *badger.Txn) error {
			for _, mu := range muts {
				if err := applyBadgerTxn(txn, mu); err != nil {
					if errors.Is(err, badger.ErrTxnTooBig) && applied > 0 {
						return nil
					}
					return err
				}
				applied++
			}
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("kv: badger apply: %w", err)
	}
	return applied, nil
}

func applyBadgerTxn(txn *badger.Txn, mu Mutation) error {
	prefix, err := badgerRowPrefix(mu.Family, mu.Row)
	if err != nil {
		return err
	}
	key := append(prefix, mu.Column...)

	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		var ts int64
		var tomb bool
		if verr := item.Value(func(v []byte) error {
			ts, tomb, err = decodeBadgerHeader(v)
			return err
		}); verr != nil {
			return verr
		}
		if !supersedes(mu.Timestamp, mu.Tombstone, ts, tomb) {
			return nil
		}
	}
	return txn.Set(key, encodeBadgerValue(mu))
}

func (b *Badger) Scan(ctx context.Context, req ScanRequest) ([]Column, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, err := badgerRowPrefix(req.Family, req.Row)
	if err != nil {
		return nil, err
	}
	seek := append(bytes.Clone(prefix), req.Start...)

	var out []Column
	err = b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchSize = req.Limit
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < req.Limit; it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ts, tomb, err := decodeBadgerHeader(v)
			if err != nil {
				return err
			}
			if tomb {
				continue
			}
			out = append(out, Column{
				Name:      item.KeyCopy(nil)[len(prefix):],
				Value:     v[badgerHeaderLen:],
				Timestamp: ts,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: badger scan: %w", err)
	}
	return out, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger adapts slog to badger's logger, demoting badger's info output
// to debug and dropping its debug output.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(f string, v ...interface{}) {
	s.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
func (s slogLogger) Warningf(f string, v ...interface{}) {
	s.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
func (s slogLogger) Infof(f string, v ...interface{}) {
	s.l.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
func (slogLogger) Debugf(string, ...interface{}) {}
