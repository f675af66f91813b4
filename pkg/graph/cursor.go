package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/iterator"

	"github.com/haivivi/edgestore/pkg/encoding"
	"github.com/haivivi/edgestore/pkg/kv"
	"github.com/haivivi/edgestore/pkg/metrics"
)

var tracer = otel.Tracer("github.com/haivivi/edgestore/pkg/graph")

// CursorState is the state of a Cursor.
type CursorState int

const (
	// StateReady means buffered columns are available.
	StateReady CursorState = iota

	// StateFetching means the next pull fetches a page from the store.
	StateFetching

	// StateExhausted means the row has no more columns. Terminal.
	StateExhausted

	// StateFailed means a fetch failed. Terminal; every pull returns the
	// fetch error.
	StateFailed
)

func (s CursorState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFetching:
		return "fetching"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("CursorState(%d)", int(s))
	}
}

// Cursor pages through the columns of one row in ascending column order.
// It keeps no server-side state: each page is an independent Scan starting
// after the last column seen, so abandoning a cursor needs no cleanup.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	ctx      context.Context
	store    kv.Store
	family   Family
	row      []byte
	next     []byte
	pageSize int
	logger   *slog.Logger

	state CursorState
	buf   []kv.Column
	short bool
	err   error
}

// newCursor returns a cursor in StateFetching that starts at column start.
func newCursor(ctx context.Context, store kv.Store, family Family, row, start []byte, pageSize int, logger *slog.Logger) *Cursor {
	return &Cursor{
		ctx:      ctx,
		store:    store,
		family:   family,
		row:      row,
		next:     start,
		pageSize: pageSize,
		logger:   logger,
		state:    StateFetching,
	}
}

// State returns the current state.
func (c *Cursor) State() CursorState {
	return c.state
}

// Err returns the fetch error once the cursor has failed.
func (c *Cursor) Err() error {
	return c.err
}

// Next returns the next column. It returns iterator.Done once the row is
// exhausted, and the fetch error on every call after a failed fetch.
func (c *Cursor) Next() (kv.Column, error) {
	for {
		switch c.state {
		case StateReady:
			col := c.buf[0]
			c.buf = c.buf[1:]
			if len(c.buf) == 0 {
				c.buf = nil
				if c.short {
					c.state = StateExhausted
				} else {
					c.state = StateFetching
				}
			}
			return col, nil
		case StateFetching:
			c.fetch()
		case StateExhausted:
			return kv.Column{}, iterator.Done
		default:
			return kv.Column{}, c.err
		}
	}
}

// fetch loads one page and moves the cursor out of StateFetching.
func (c *Cursor) fetch() {
	ctx, span := tracer.Start(c.ctx, "graph.scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("edgestore.family", string(c.family)),
		attribute.Int("edgestore.page_size", c.pageSize),
	)

	start := time.Now()
	cols, err := c.store.Scan(ctx, kv.ScanRequest{
		Family: string(c.family),
		Row:    c.row,
		Start:  c.next,
		Limit:  c.pageSize,
	})
	metrics.ScanDuration.WithLabelValues(string(c.family)).Observe(time.Since(start).Seconds())
	metrics.ScanPages.WithLabelValues(string(c.family)).Inc()

	if err != nil {
		metrics.ScanErrors.WithLabelValues(string(c.family)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		c.err = fmt.Errorf("graph: scan %s: %w", c.family, err)
		c.state = StateFailed
		return
	}

	metrics.ScanColumns.WithLabelValues(string(c.family)).Add(float64(len(cols)))
	span.SetAttributes(attribute.Int("edgestore.columns", len(cols)))
	c.logger.Debug("graph: fetched page",
		"family", c.family,
		"columns", len(cols),
		"page_size", c.pageSize,
	)

	if len(cols) == 0 {
		c.state = StateExhausted
		return
	}
	c.buf = cols
	c.short = len(cols) < c.pageSize
	c.next = encoding.Successor(cols[len(cols)-1].Name)
	c.state = StateReady
}
