package graph

import (
	"github.com/haivivi/edgestore/pkg/kv"
	"github.com/haivivi/edgestore/pkg/metrics"
)

// BuildWrite returns a batch inserting e into all five row families. Each
// mutation is timestamped with e.Version, so replaying the batch is
// harmless. Nothing is appended unless every key encodes.
func BuildWrite(scope Scope, e Edge) (*kv.Batch, error) {
	keys, err := EncodeIndexKeys(scope, e)
	if err != nil {
		return nil, err
	}
	b := kv.NewBatch(len(keys))
	for _, k := range keys {
		b.Put(string(k.Family), k.Row, k.Column, nil, e.Version)
	}
	metrics.Batches.WithLabelValues("write").Inc()
	return b, nil
}

// BuildDelete returns a batch tombstoning e in the same five cells
// BuildWrite fills, at e.Version. Versions of the edge newer than e.Version
// live in other cells and are unaffected.
func BuildDelete(scope Scope, e Edge) (*kv.Batch, error) {
	keys, err := EncodeIndexKeys(scope, e)
	if err != nil {
		return nil, err
	}
	b := kv.NewBatch(len(keys))
	for _, k := range keys {
		b.Delete(string(k.Family), k.Row, k.Column, e.Version)
	}
	metrics.Batches.WithLabelValues("delete").Inc()
	return b, nil
}
