// Package store implements the record-store abstraction: attribute
// get/set with dirty tracking (delegated to node.Node), save/delete,
// shared and exclusive row locks via query modifiers, transaction
// begin/commit/rollback with a nesting-level accessor, and a
// fresh-reload primitive. SQLStore is the concrete database/sql +
// jmoiron/sqlx + gocraft/dbr/v2 implementation; MemStore is an
// in-memory stand-in that enables property-based testing without a
// database.
package store

import (
	"context"

	"github.com/rokde/baum/libraries/nestedset/node"
)

// LockMode selects the row-lock flavor for a read
type LockMode int

const (
	NoLock LockMode = iota
	// ForUpdate acquires an exclusive row lock.
	ForUpdate
	// ShareLock acquires a shared row lock.
	ShareLock
)

// QueryKind names one of the Query Builder's predicates, so both the SQL-backed and in-memory stores can implement the
// exact same predicate semantics without either one reimplementing
// the other's SQL/slice-filtering logic.
type QueryKind int

const (
	QueryRoots QueryKind = iota
	QueryAllLeaves
	QueryLeaves
	QueryAllTrunks
	QueryTrunks
	QueryAncestorsAndSelf
	QueryAncestors
	QueryDescendantsAndSelf
	QueryDescendants
	QuerySiblingsAndSelf
	QuerySiblings
	QueryLimitDepth
)

// BoundsRewrite is the single conditional UPDATE the Move Engine
// issues: rows whose left/right fall in [A,B] shift by
// DeltaAB, rows in [C,D] shift by DeltaCD, and the moved row's parent
// column is set to NewParent.
type BoundsRewrite[K comparable] struct {
	A, B, C, D       int
	DeltaAB, DeltaCD int
	MovedID          K
	NewParent        *K
}

// Transaction is the minimal handle both store implementations hand
// back from Begin: commit/rollback plus a nesting-depth accessor.
type Transaction interface {
	Level() int
	Commit() error
	Rollback() error
}

// Store is the record-store contract the core (hooks, mover,
// setbuilder, mapper) is written against. K is the primary-key type.
type Store[K comparable] interface {
	// Begin starts a transaction, or nests one level deeper if parent
	// is non-nil.
	Begin(ctx context.Context, parent Transaction) (Transaction, error)

	// Get reloads a single row by id within scope, optionally under a
	// row lock. Returns nserrors.RecordNotFound if absent.
	Get(ctx context.Context, tx Transaction, scope map[string]any, id K, lock LockMode) (*node.Node[K], error)

	// MaxRight returns the current max right bound in scope, read
	// under lock.
	MaxRight(ctx context.Context, tx Transaction, scope map[string]any, lock LockMode) (int, error)

	// Query runs one of the named predicates. extra carries
	// predicate-specific parameters (QueryLimitDepth's k).
	Query(ctx context.Context, tx Transaction, kind QueryKind, scope map[string]any, self *node.Node[K], extra ...any) ([]*node.Node[K], error)

	// Save inserts (if !n.Persisted()) or updates only the dirty
	// columns, then clears the dirty bitset and marks n persisted.
	Save(ctx context.Context, tx Transaction, n *node.Node[K]) error

	// Delete removes exactly the given row (subtree pruning is the
	// caller's responsibility; see DeleteInterior/ShiftLeft/ShiftRight).
	Delete(ctx context.Context, tx Transaction, n *node.Node[K]) error

	// LockBoundsRange takes a row lock over every row whose left or
	// right falls in [lo, hi] — the Move Engine's boundary-quadruple
	// lock.
	LockBoundsRange(ctx context.Context, tx Transaction, scope map[string]any, lo, hi int) error

	// LockFrom takes a row lock over every row with left >= threshold
	// — the delete path's subtree-prune lock.
	LockFrom(ctx context.Context, tx Transaction, scope map[string]any, threshold int) error

	// RewriteBounds issues the Move Engine's single conditional UPDATE.
	RewriteBounds(ctx context.Context, tx Transaction, scope map[string]any, rw BoundsRewrite[K]) error

	// DeleteInterior deletes every row with left > exclusiveLo AND
	// right < exclusiveHi, returning the count removed.
	DeleteInterior(ctx context.Context, tx Transaction, scope map[string]any, exclusiveLo, exclusiveHi int) (int64, error)

	// ShiftLeft adds delta to the left column of every row whose left
	// satisfies the threshold comparison (> if strict, >= otherwise).
	ShiftLeft(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error

	// ShiftRight is ShiftLeft's mirror on the right column.
	ShiftRight(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error

	// SetDepth writes depth := level on exactly one row.
	SetDepth(ctx context.Context, tx Transaction, scope map[string]any, id K, level int) error

	// SetBounds unconditionally writes left, right and parent on
	// exactly one row by id. Unlike RewriteBounds, it never consults
	// the row's current stored bounds, so it is safe to call with
	// freshly computed values against a row whose stored bounds are
	// stale or corrupt. Used by the Set Builder to persist a rebuilt
	// tree; RewriteBounds' WHERE clause matches against the row's old
	// bounds and is the wrong tool for that job.
	SetBounds(ctx context.Context, tx Transaction, scope map[string]any, id K, parent *K, left, right int) error

	// ShiftDepth adds delta to the depth column of every strict
	// descendant of self.
	ShiftDepth(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K], delta int) error

	// UnmaskDescendants clears the soft-delete marker on every strict
	// descendant of self.
	UnmaskDescendants(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K]) error
}
