package graph

import (
	"context"
	"log/slog"

	"github.com/haivivi/edgestore/pkg/kv"
)

// NewCursor exposes newCursor to external tests.
func NewCursor(ctx context.Context, store kv.Store, family Family, row []byte, pageSize int) *Cursor {
	return newCursor(ctx, store, family, row, nil, pageSize, slog.Default())
}
