package graph

import (
	"errors"
	"iter"

	"google.golang.org/api/iterator"

	"github.com/haivivi/edgestore/pkg/metrics"
)

// EdgeIterator decodes the columns of a Cursor into edges. It is lazy: pages
// are fetched as Next is called. An EdgeIterator is not safe for concurrent
// use.
type EdgeIterator struct {
	cursor     *Cursor
	family     Family
	row        []byte
	maxVersion Ceiling

	// onePerNode keeps only the first admitted version per opposite node.
	onePerNode bool
	lastNode   NodeID
	seenNode   bool

	err error
}

// Next returns the next edge, or iterator.Done when there are no more.
// Store and decode errors are sticky.
func (it *EdgeIterator) Next() (Edge, error) {
	if it.err != nil {
		return Edge{}, it.err
	}
	for {
		col, err := it.cursor.Next()
		if err != nil {
			return Edge{}, err
		}
		e, err := DecodeColumn(it.family, it.row, col.Name)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues(string(it.family)).Inc()
			it.err = err
			return Edge{}, err
		}
		if !it.maxVersion.Admits(e.Version) {
			continue
		}
		if it.onePerNode {
			opp := opposite(it.family, e)
			if it.seenNode && opp == it.lastNode {
				continue
			}
			it.lastNode, it.seenNode = opp, true
		}
		return e, nil
	}
}

// All adapts the iterator to a range-over-func sequence. Iteration stops
// after the first error.
func (it *EdgeIterator) All() iter.Seq2[Edge, error] {
	return func(yield func(Edge, error) bool) {
		for {
			e, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(Edge{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Collect drains the iterator. On error it returns the edges read so far
// together with the error.
func (it *EdgeIterator) Collect() ([]Edge, error) {
	var edges []Edge
	for e, err := range it.All() {
		if err != nil {
			return edges, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// opposite returns the endpoint of e that is not the row's anchor.
func opposite(f Family, e Edge) NodeID {
	switch f {
	case FamilyByTarget, FamilyByTargetSourceType:
		return e.Source
	default:
		return e.Target
	}
}
