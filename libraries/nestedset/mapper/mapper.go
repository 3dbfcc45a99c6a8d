// Package mapper reconciles a caller-supplied nested array of
// attribute maps against the persisted subtree of a receiver node:
// creating and updating rows that appear in the input, deleting
// persisted descendants that no longer appear anywhere in it, and
// rebuilding the affected subtree's bounds in one pass.
package mapper

import (
	"context"

	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
	"github.com/rokde/baum/libraries/nestedset/setbuilder"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// ChildrenKey is the reserved attribute name an Input map uses to
// nest its recursive list of children.
const ChildrenKey = "children"

// Input is one entry of the caller-supplied nested array: the row's
// ID (required; an ID that is not among the receiver's persisted
// descendants creates a new row), a bag of attribute values copied
// into the row's Extra map, and a Children list of further Inputs.
type Input[K comparable] struct {
	ID       *K
	Attrs    map[string]any
	Children []Input[K]
}

// Sync walks inputs under receiver, in the order given, creating or
// updating each row's attributes and recursing into its children,
// then removes any persisted descendant of receiver whose id appears
// in neither inputs nor any of its subtrees, and finally rebuilds
// bounds for receiver's scope.
func Sync[K comparable](ctx context.Context, st store.Store[K], scope map[string]any, receiver *node.Node[K], inputs []Input[K]) error {
	before, err := st.Query(ctx, nil, store.QueryDescendants, scope, receiver)
	if err != nil {
		return err
	}
	beforeIDs := make(map[K]bool, len(before))
	for _, n := range before {
		beforeIDs[n.ID] = true
	}

	kept := map[K]bool{}
	var apply func(parent *node.Node[K], items []Input[K]) error
	apply = func(parent *node.Node[K], items []Input[K]) error {
		for _, item := range items {
			var row *node.Node[K]
			if item.ID != nil && beforeIDs[*item.ID] {
				row, err = st.Get(ctx, nil, scope, *item.ID, store.NoLock)
				if err != nil {
					return err
				}
			} else if item.ID != nil {
				row = node.New[K](*item.ID)
			} else {
				return nserrors.New(nserrors.InvariantViolated, "mapper input is missing an id")
			}

			for k, v := range item.Attrs {
				row.Extra[k] = v
			}
			row.SetParent(&parent.ID)
			row.Scope = scope

			if err := st.Save(ctx, nil, row); err != nil {
				return err
			}
			kept[row.ID] = true

			if err := apply(row, item.Children); err != nil {
				return err
			}
		}
		return nil
	}

	if err := apply(receiver, inputs); err != nil {
		return err
	}

	for _, n := range before {
		if !kept[n.ID] {
			if err := st.Delete(ctx, nil, n); err != nil {
				return err
			}
		}
	}

	return setbuilder.Rebuild[K](ctx, st, scope)
}
