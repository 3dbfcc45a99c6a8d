// Package collection folds a flat query result into a nested
// in-memory forest by attaching each node to its parent's children
// list. Rows whose parent id isn't present in the set become roots of
// the returned forest.
package collection

import (
	"github.com/google/btree"

	"github.com/rokde/baum/libraries/nestedset/node"
)

// Tree is one node of the in-memory forest, wrapping the underlying
// record with its resolved children.
type Tree[K comparable] struct {
	Node     *node.Node[K]
	Children []*Tree[K]
}

// Build attaches each row in rows to its parent by id, preserving the
// order rows were given in. Orphans — rows whose parent id has no
// matching row in the set — become roots of the returned forest.
func Build[K comparable](rows []*node.Node[K]) []*Tree[K] {
	byID := make(map[K]*Tree[K], len(rows))
	for _, r := range rows {
		byID[r.ID] = &Tree[K]{Node: r}
	}

	var roots []*Tree[K]
	for _, r := range rows {
		t := byID[r.ID]
		if r.Parent == nil {
			roots = append(roots, t)
			continue
		}
		parent, ok := byID[*r.Parent]
		if !ok {
			roots = append(roots, t)
			continue
		}
		parent.Children = append(parent.Children, t)
	}
	return roots
}

// BuildOrdered is Build, but every sibling list ends up ordered by the
// Order column (falling back to Left when Order is nil). Rows are
// pushed through a google/btree ordered index to get one global rank
// order in O(n log n), then handed to Build in that order — Build
// already appends children in the order it sees rows, so each
// resulting sibling list comes out pre-sorted for free.
func BuildOrdered[K comparable](rows []*node.Node[K]) []*Tree[K] {
	// Left is unique within a scope's result set, so pairing it with
	// rank as a tiebreaker keeps every row distinct even when several
	// siblings share the same explicit Order value.
	ranked := btree.NewG(32, func(a, b *node.Node[K]) bool {
		if ra, rb := rankOf(a), rankOf(b); ra != rb {
			return ra < rb
		}
		return a.Left < b.Left
	})
	for _, r := range rows {
		ranked.ReplaceOrInsert(r)
	}

	ordered := make([]*node.Node[K], 0, len(rows))
	ranked.Ascend(func(r *node.Node[K]) bool {
		ordered = append(ordered, r)
		return true
	})
	return Build(ordered)
}

func rankOf[K comparable](n *node.Node[K]) int {
	if n.Order != nil {
		return *n.Order
	}
	return n.Left
}
