// Package node models a single nested-set row as an in-memory handle:
// identity, scope values, structural fields, a persistence flag, and
// per-field dirty tracking. A generic attribute bag is split into
// typed structural fields plus an opaque extras map, and there is no
// process-wide "pending move" slot — see hooks.MoveContext for that.
package node

import "time"

// Field identifies one structural or attribute-bag slot for dirty
// tracking, letting IsDirty(field) test one bit instead of comparing a
// whole column name.
type Field uint16

const (
	FieldParent Field = 1 << iota
	FieldLeft
	FieldRight
	FieldDepth
	FieldOrder
	FieldScope
	FieldExtra
	FieldDeletedAt
)

// Node is the in-memory handle for one row of a nested-set table. K is
// the primary-key type; both integer and github.com/google/uuid.UUID
// instantiations are supported by parameterizing the key type instead
// of assuming an integer.
type Node[K comparable] struct {
	ID     K
	Parent *K

	Left  int
	Right int
	Depth int

	// Level is a caller-precomputed ancestor count for a node that
	// isn't persisted yet, standing in for Depth wherever a query needs
	// "this node's depth" but Depth is still its unset zero value.
	Level int

	// Order is the explicit ordering key. When nil, callers fall back
	// to Left as the order
	Order *int

	// Scope holds the zero-or-more scope column values that partition
	// the table into independent forests.
	Scope map[string]any

	// Extra is the opaque bag of user attributes that the core never
	// interprets.
	Extra map[string]any

	DeletedAt *time.Time

	persisted bool
	dirty     Field
}

// New returns an unpersisted node with empty scope/extra maps.
func New[K comparable](id K) *Node[K] {
	return &Node[K]{
		ID:    id,
		Scope: map[string]any{},
		Extra: map[string]any{},
	}
}

// Persisted reports whether this handle reflects a row that exists in
// the store.
func (n *Node[K]) Persisted() bool { return n.persisted }

// MarkPersisted flags the node as backed by a stored row and clears
// all dirty bits, matching a successful save/reload.
func (n *Node[K]) MarkPersisted() {
	n.persisted = true
	n.dirty = 0
}

// MarkDirty sets one or more dirty bits, e.g. after a direct field
// assignment made by store-layer code before Save.
func (n *Node[K]) MarkDirty(f Field) { n.dirty |= f }

// ClearDirty clears all dirty bits, e.g. after a successful Save.
func (n *Node[K]) ClearDirty() { n.dirty = 0 }

// IsDirty inspects a single bit.
func (n *Node[K]) IsDirty(f Field) bool { return n.dirty&f != 0 }

// SetParent assigns a new parent id and marks the parent field dirty
// iff the value actually changed, so the "saving" hook can tell a
// deliberate reparent from an untouched pointer.
func (n *Node[K]) SetParent(parent *K) {
	if samePtrValue(n.Parent, parent) {
		return
	}
	n.Parent = parent
	n.MarkDirty(FieldParent)
}

func samePtrValue[K comparable](a, b *K) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// IsRoot reports parent = null.
func (n *Node[K]) IsRoot() bool { return n.Parent == nil }

// IsLeaf reports persisted and right-left = 1.
func (n *Node[K]) IsLeaf() bool { return n.persisted && n.Right-n.Left == 1 }

// IsTrunk reports neither root nor leaf.
func (n *Node[K]) IsTrunk() bool { return !n.IsRoot() && !n.IsLeaf() }

// SubtreeSize returns the number of descendants implied by the bounds:
// (right - left - 1) / 2.
func (n *Node[K]) SubtreeSize() int {
	return (n.Right - n.Left - 1) / 2
}

// Equals compares identity by primary key and full attribute equality.
func (n *Node[K]) Equals(other *Node[K]) bool {
	if other == nil {
		return false
	}
	if n.ID != other.ID {
		return false
	}
	if !samePtrValue(n.Parent, other.Parent) {
		return false
	}
	if n.Left != other.Left || n.Right != other.Right || n.Depth != other.Depth {
		return false
	}
	if !equalIntPtr(n.Order, other.Order) {
		return false
	}
	return mapsEqual(n.Scope, other.Scope) && mapsEqual(n.Extra, other.Extra)
}

// InSameScope compares equality on every scope column.
func (n *Node[K]) InSameScope(other *Node[K]) bool {
	if other == nil {
		return false
	}
	return mapsEqual(n.Scope, other.Scope)
}

// InsideSubtree reports whether n's bounds lie fully within other's
// bounds: n.left in [other.left, other.right] and n.right in
// [other.left, other.right].
func (n *Node[K]) InsideSubtree(other *Node[K]) bool {
	if other == nil {
		return false
	}
	return n.Left >= other.Left && n.Left <= other.Right &&
		n.Right >= other.Left && n.Right <= other.Right
}

// IsAncestorOf reports strict ancestry: n's bounds strictly enclose
// other's, and both share a scope.
func (n *Node[K]) IsAncestorOf(other *Node[K]) bool {
	if other == nil || !n.InSameScope(other) {
		return false
	}
	return n.Left < other.Left && n.Right > other.Right
}

// IsAncestorOfOrSelf reports inclusive ancestry.
func (n *Node[K]) IsAncestorOfOrSelf(other *Node[K]) bool {
	if other == nil || !n.InSameScope(other) {
		return false
	}
	return n.Left <= other.Left && n.Right >= other.Right
}

// IsDescendantOf reports strict descent: the mirror of IsAncestorOf.
func (n *Node[K]) IsDescendantOf(other *Node[K]) bool {
	if other == nil {
		return false
	}
	return other.IsAncestorOf(n)
}

// IsDescendantOfOrSelf reports inclusive descent.
func (n *Node[K]) IsDescendantOfOrSelf(other *Node[K]) bool {
	if other == nil {
		return false
	}
	return other.IsAncestorOfOrSelf(n)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}
