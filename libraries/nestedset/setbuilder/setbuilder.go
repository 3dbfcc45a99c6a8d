// Package setbuilder rebuilds a scope's bounds from its parent
// pointers and validates that a scope's bounds are internally
// consistent.
package setbuilder

import (
	"context"
	"sort"

	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// Rebuild walks roots in order, assigning left on entry and right on
// exit of a depth-first traversal, with depth set to recursion depth.
// It runs in a single transaction and produces bounds satisfying every
// nested-set invariant regardless of what the scope's bounds looked
// like beforehand.
func Rebuild[K comparable](ctx context.Context, st store.Store[K], scope map[string]any) error {
	tx, err := st.Begin(ctx, nil)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "begin rebuild transaction")
	}
	fail := func(err error) error {
		_ = tx.Rollback()
		return err
	}

	all, err := st.Query(ctx, tx, store.QueryAllLeaves, scope, nil)
	if err != nil {
		return fail(err)
	}
	roots, err := st.Query(ctx, tx, store.QueryRoots, scope, nil)
	if err != nil {
		return fail(err)
	}
	trunks, err := st.Query(ctx, tx, store.QueryAllTrunks, scope, nil)
	if err != nil {
		return fail(err)
	}

	byParent := map[K][]*node.Node[K]{}
	byID := map[K]*node.Node[K]{}
	for _, n := range append(append(all, roots...), trunks...) {
		byID[n.ID] = n
	}
	for _, n := range byID {
		if n.Parent != nil {
			byParent[*n.Parent] = append(byParent[*n.Parent], n)
		}
	}
	for _, siblings := range byParent {
		sort.Slice(siblings, func(i, j int) bool { return orderKey(siblings[i]) < orderKey(siblings[j]) })
	}
	sort.Slice(roots, func(i, j int) bool { return orderKey(roots[i]) < orderKey(roots[j]) })

	counter := 1
	var walk func(n *node.Node[K], depth int) error
	walk = func(n *node.Node[K], depth int) error {
		n.Left = counter
		n.Depth = depth
		counter++
		for _, child := range byParent[n.ID] {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		n.Right = counter
		counter++
		return st.SetBounds(ctx, tx, scope, n.ID, n.Parent, n.Left, n.Right)
	}

	for _, r := range roots {
		if err := walk(r, 0); err != nil {
			return fail(err)
		}
		if err := st.SetDepth(ctx, tx, scope, r.ID, 0); err != nil {
			return fail(err)
		}
	}
	for id, n := range byID {
		if err := st.SetDepth(ctx, tx, scope, id, n.Depth); err != nil {
			return fail(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "commit rebuild transaction")
	}
	return nil
}

func orderKey[K comparable](n *node.Node[K]) int {
	if n.Order != nil {
		return *n.Order
	}
	return n.Left
}

// IsValidNestedSet runs the four bounds-consistency checks against
// every row in scope: bounds are ordered, bounds partition {1..2N}
// without overlap, each row's tightest strict ancestor equals its
// declared parent, and cached depth matches the true ancestor count.
func IsValidNestedSet[K comparable](ctx context.Context, st store.Store[K], scope map[string]any) (bool, error) {
	rows, err := allRows(ctx, st, scope)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return true, nil
	}

	seen := make(map[int]bool, len(rows)*2)
	for _, r := range rows {
		if r.Left >= r.Right {
			return false, nil
		}
		if seen[r.Left] || seen[r.Right] {
			return false, nil
		}
		seen[r.Left] = true
		seen[r.Right] = true
	}
	for i := 1; i <= len(rows)*2; i++ {
		if !seen[i] {
			return false, nil
		}
	}

	byID := make(map[K]*node.Node[K], len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for _, r := range rows {
		if r.IsRoot() {
			for _, candidate := range rows {
				if candidate.Left < r.Left && candidate.Right > r.Right {
					return false, nil
				}
			}
			if r.Depth != 0 {
				return false, nil
			}
			continue
		}
		var tightest *node.Node[K]
		for _, candidate := range rows {
			if candidate.ID == r.ID {
				continue
			}
			if candidate.Left < r.Left && candidate.Right > r.Right {
				if tightest == nil || (r.Left-candidate.Left) < (r.Left-tightest.Left) {
					tightest = candidate
				}
			}
		}
		if tightest == nil {
			return false, nil
		}
		parent, ok := byID[*r.Parent]
		if !ok || parent.ID != tightest.ID {
			return false, nil
		}

		trueDepth := 0
		for _, candidate := range rows {
			if candidate.Left < r.Left && candidate.Right > r.Right {
				trueDepth++
			}
		}
		if r.Depth != trueDepth {
			return false, nil
		}
	}
	return true, nil
}

func allRows[K comparable](ctx context.Context, st store.Store[K], scope map[string]any) ([]*node.Node[K], error) {
	roots, err := st.Query(ctx, nil, store.QueryRoots, scope, nil)
	if err != nil {
		return nil, err
	}
	trunks, err := st.Query(ctx, nil, store.QueryAllTrunks, scope, nil)
	if err != nil {
		return nil, err
	}
	leaves, err := st.Query(ctx, nil, store.QueryAllLeaves, scope, nil)
	if err != nil {
		return nil, err
	}
	seen := map[K]*node.Node[K]{}
	for _, n := range append(append(roots, trunks...), leaves...) {
		seen[n.ID] = n
	}
	out := make([]*node.Node[K], 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out, nil
}
