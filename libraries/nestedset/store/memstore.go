package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
)

// MemStore is an in-memory implementation of the Store contract,
// enabling property-based testing without a database. It implements
// the exact predicate semantics of the Query Builder directly over a
// Go slice, so the bounds algebra can be unit-tested without a SQL
// engine.
type MemStore[K comparable] struct {
	mu   sync.Mutex
	desc struct {
		scopeColumns []string
	}
	rows []*node.Node[K]
}

// NewMemStore returns an empty in-memory store.
func NewMemStore[K comparable](scopeColumns []string) *MemStore[K] {
	m := &MemStore[K]{}
	m.desc.scopeColumns = scopeColumns
	return m
}

// Seed inserts pre-built rows directly, bypassing Save, for test setup.
func (m *MemStore[K]) Seed(rows ...*node.Node[K]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		r.MarkPersisted()
		m.rows = append(m.rows, r)
	}
}

// memTx is MemStore's transaction handle: a no-op beyond nesting
// depth, since the in-memory slice has no real isolation.
type memTx struct{ level int }

func (t *memTx) Level() int      { return t.level }
func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func (m *MemStore[K]) Begin(ctx context.Context, parent Transaction) (Transaction, error) {
	if parent != nil {
		if t, ok := parent.(*memTx); ok {
			return &memTx{level: t.level + 1}, nil
		}
	}
	return &memTx{level: 1}, nil
}

func inScope(n *node.Node[K], scope map[string]any) bool {
	for k, v := range scope {
		if n.Scope[k] != v {
			return false
		}
	}
	return true
}

func (m *MemStore[K]) filtered(scope map[string]any) []*node.Node[K] {
	var out []*node.Node[K]
	for _, r := range m.rows {
		if inScope(r, scope) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return orderKey(out[i]) < orderKey(out[j]) })
	return out
}

func orderKey(n *node.Node[K]) int {
	if n.Order != nil {
		return *n.Order
	}
	return n.Left
}

func (m *MemStore[K]) Get(ctx context.Context, tx Transaction, scope map[string]any, id K, lock LockMode) (*node.Node[K], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && inScope(r, scope) {
			return r, nil
		}
	}
	return nil, nserrors.New(nserrors.RecordNotFound, "no row for id %v", id)
}

func (m *MemStore[K]) MaxRight(ctx context.Context, tx Transaction, scope map[string]any, lock LockMode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.rows {
		if inScope(r, scope) && r.Right > max {
			max = r.Right
		}
	}
	return max, nil
}

func (m *MemStore[K]) Query(ctx context.Context, tx Transaction, kind QueryKind, scope map[string]any, self *node.Node[K], extra ...any) ([]*node.Node[K], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.filtered(scope)
	var out []*node.Node[K]
	switch kind {
	case QueryRoots:
		for _, r := range rows {
			if r.IsRoot() {
				out = append(out, r)
			}
		}
	case QueryAllLeaves:
		for _, r := range rows {
			if r.Right-r.Left == 1 {
				out = append(out, r)
			}
		}
	case QueryLeaves:
		for _, r := range rows {
			if r.Right-r.Left == 1 && r.Left >= self.Left && r.Left < self.Right {
				out = append(out, r)
			}
		}
	case QueryAllTrunks:
		for _, r := range rows {
			if !r.IsRoot() && r.Right-r.Left != 1 {
				out = append(out, r)
			}
		}
	case QueryTrunks:
		for _, r := range rows {
			if !r.IsRoot() && r.Right-r.Left != 1 && r.Left >= self.Left && r.Left < self.Right && r.ID != self.ID {
				out = append(out, r)
			}
		}
	case QueryAncestorsAndSelf:
		for _, r := range rows {
			if r.Left <= self.Left && r.Right >= self.Right {
				out = append(out, r)
			}
		}
	case QueryAncestors:
		for _, r := range rows {
			if r.Left <= self.Left && r.Right >= self.Right && r.ID != self.ID {
				out = append(out, r)
			}
		}
	case QueryDescendantsAndSelf:
		for _, r := range rows {
			if r.Left >= self.Left && r.Left < self.Right {
				out = append(out, r)
			}
		}
	case QueryDescendants:
		for _, r := range rows {
			if r.Left >= self.Left && r.Left < self.Right && r.ID != self.ID {
				out = append(out, r)
			}
		}
	case QuerySiblingsAndSelf:
		for _, r := range rows {
			if samePtrValue(r.Parent, self.Parent) {
				out = append(out, r)
			}
		}
	case QuerySiblings:
		for _, r := range rows {
			if samePtrValue(r.Parent, self.Parent) && r.ID != self.ID {
				out = append(out, r)
			}
		}
	case QueryLimitDepth:
		k := 0
		if len(extra) > 0 {
			k = extra[0].(int)
		}
		d := self.Depth
		if !self.Persisted() {
			d = self.Level
		}
		for _, r := range rows {
			if r.Depth >= d && r.Depth <= d+k {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func samePtrValue[K comparable](a, b *K) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *MemStore[K]) Save(ctx context.Context, tx Transaction, n *node.Node[K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !n.Persisted() {
		m.rows = append(m.rows, n)
	}
	n.MarkPersisted()
	return nil
}

func (m *MemStore[K]) Delete(ctx context.Context, tx Transaction, n *node.Node[K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == n.ID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemStore[K]) LockBoundsRange(ctx context.Context, tx Transaction, scope map[string]any, lo, hi int) error {
	return nil
}

func (m *MemStore[K]) LockFrom(ctx context.Context, tx Transaction, scope map[string]any, threshold int) error {
	return nil
}

func (m *MemStore[K]) RewriteBounds(ctx context.Context, tx Transaction, scope map[string]any, rw BoundsRewrite[K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if !inScope(r, scope) {
			continue
		}
		if r.Left >= rw.A && r.Left <= rw.B {
			r.Left += rw.DeltaAB
		} else if r.Left >= rw.C && r.Left <= rw.D {
			r.Left += rw.DeltaCD
		}
		if r.Right >= rw.A && r.Right <= rw.B {
			r.Right += rw.DeltaAB
		} else if r.Right >= rw.C && r.Right <= rw.D {
			r.Right += rw.DeltaCD
		}
		if r.ID == rw.MovedID {
			r.Parent = rw.NewParent
		}
	}
	return nil
}

func (m *MemStore[K]) DeleteInterior(ctx context.Context, tx Transaction, scope map[string]any, exclusiveLo, exclusiveHi int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*node.Node[K]
	var removed int64
	for _, r := range m.rows {
		if inScope(r, scope) && r.Left > exclusiveLo && r.Right < exclusiveHi {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

func (m *MemStore[K]) ShiftLeft(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if !inScope(r, scope) {
			continue
		}
		if (strict && r.Left > threshold) || (!strict && r.Left >= threshold) {
			r.Left += delta
		}
	}
	return nil
}

func (m *MemStore[K]) ShiftRight(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if !inScope(r, scope) {
			continue
		}
		if (strict && r.Right > threshold) || (!strict && r.Right >= threshold) {
			r.Right += delta
		}
	}
	return nil
}

func (m *MemStore[K]) SetDepth(ctx context.Context, tx Transaction, scope map[string]any, id K, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			r.Depth = level
			return nil
		}
	}
	return nserrors.New(nserrors.RecordNotFound, "no row for id %v", id)
}

func (m *MemStore[K]) SetBounds(ctx context.Context, tx Transaction, scope map[string]any, id K, parent *K, left, right int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			r.Left = left
			r.Right = right
			r.Parent = parent
			return nil
		}
	}
	return nserrors.New(nserrors.RecordNotFound, "no row for id %v", id)
}

func (m *MemStore[K]) ShiftDepth(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K], delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if inScope(r, scope) && r.Left > self.Left && r.Right < self.Right {
			r.Depth += delta
		}
	}
	return nil
}

func (m *MemStore[K]) UnmaskDescendants(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if inScope(r, scope) && r.Left > self.Left && r.Right < self.Right {
			r.DeletedAt = nil
		}
	}
	return nil
}
