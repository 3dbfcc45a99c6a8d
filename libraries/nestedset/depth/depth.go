// Package depth recomputes cached depth values. Depth equals the
// count of strict ancestors, which the bounds encoding already
// answers via a containment comparison (self.left ∈ (ancestor.left,
// ancestor.right)) in one query, rather than an O(depth) walk up the
// parent chain.
package depth

import (
	"context"

	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// ComputeLevel returns the true ancestor count for self under its
// current bounds.
func ComputeLevel[K comparable](ctx context.Context, tx store.Transaction, st store.Store[K], scope map[string]any, self *node.Node[K]) (int, error) {
	ancestors, err := st.Query(ctx, tx, store.QueryAncestors, scope, self)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// RecomputeSubtree computes self's true level, writes it if it
// differs from the cached value, and — unless self is a leaf — shifts
// every descendant's cached depth by the same delta.
func RecomputeSubtree[K comparable](ctx context.Context, tx store.Transaction, st store.Store[K], scope map[string]any, self *node.Node[K]) error {
	level, err := ComputeLevel[K](ctx, tx, st, scope, self)
	if err != nil {
		return err
	}
	delta := level - self.Depth
	if delta == 0 {
		return nil
	}
	if err := st.SetDepth(ctx, tx, scope, self.ID, level); err != nil {
		return err
	}
	self.Depth = level
	if self.IsLeaf() {
		return nil
	}
	return st.ShiftDepth(ctx, tx, scope, self, delta)
}
