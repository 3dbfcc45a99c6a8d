// Package query implements the Query Builder: a set of composable
// predicates over the backing table, every one of them
// scope-restricted. Statements are assembled with
// github.com/gocraft/dbr/v2 and handed to the store package as plain
// SQL + args for execution, so this package never itself talks to a
// database connection.
package query

import (
	"fmt"

	"github.com/gocraft/dbr/v2"

	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/node"
)

// Builder produces predicate-composable dbr statements over one
// descriptor, restricted to one scope tuple.
type Builder[K comparable] struct {
	Desc  descriptor.Descriptor
	Scope map[string]any
}

// New returns a Builder scoped to the given scope tuple.
func New[K comparable](desc descriptor.Descriptor, scope map[string]any) *Builder[K] {
	if scope == nil {
		scope = map[string]any{}
	}
	return &Builder[K]{Desc: desc, Scope: scope}
}

// Base returns a SELECT * FROM <table> statement ordered by the
// effective order column and restricted to this builder's scope. It
// is the common ancestor of every other predicate.
func (b *Builder[K]) Base(sess *dbr.Session) *dbr.SelectStmt {
	stmt := sess.Select("*").From(b.Desc.Table).OrderBy(b.Desc.Order())
	for _, col := range b.Desc.ScopeColumns {
		stmt = stmt.Where(dbr.Eq(col, b.Scope[col]))
	}
	return stmt
}

// Roots: parent IS NULL.
func (b *Builder[K]) Roots(sess *dbr.Session) *dbr.SelectStmt {
	return b.Base(sess).Where(dbr.Eq(b.Desc.ParentColumn, nil))
}

// AllLeaves: right - left = 1.
func (b *Builder[K]) AllLeaves(sess *dbr.Session) *dbr.SelectStmt {
	return b.Base(sess).Where(fmt.Sprintf("(%s - %s) = 1", b.Desc.RightColumn, b.Desc.LeftColumn))
}

// Leaves: allLeaves AND left in [self.left, self.right).
func (b *Builder[K]) Leaves(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return b.AllLeaves(sess).
		Where(dbr.Gte(b.Desc.LeftColumn, self.Left)).
		Where(dbr.Lt(b.Desc.LeftColumn, self.Right))
}

// AllTrunks: parent IS NOT NULL AND right - left != 1.
func (b *Builder[K]) AllTrunks(sess *dbr.Session) *dbr.SelectStmt {
	return b.Base(sess).
		Where(dbr.Neq(b.Desc.ParentColumn, nil)).
		Where(fmt.Sprintf("(%s - %s) != 1", b.Desc.RightColumn, b.Desc.LeftColumn))
}

// Trunks: allTrunks AND descendants(self).
func (b *Builder[K]) Trunks(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return b.AllTrunks(sess).
		Where(dbr.Gte(b.Desc.LeftColumn, self.Left)).
		Where(dbr.Lt(b.Desc.LeftColumn, self.Right)).
		Where(dbr.Neq(b.Desc.IDColumn, self.ID))
}

// WithoutNode: id != n.id.
func WithoutNode[K comparable](stmt *dbr.SelectStmt, desc descriptor.Descriptor, id K) *dbr.SelectStmt {
	return stmt.Where(dbr.Neq(desc.IDColumn, id))
}

// WithoutSelf is the WithoutNode macro applied to self.
func WithoutSelf[K comparable](stmt *dbr.SelectStmt, desc descriptor.Descriptor, self *node.Node[K]) *dbr.SelectStmt {
	return WithoutNode[K](stmt, desc, self.ID)
}

// WithoutRoot: parent IS NOT NULL.
func WithoutRoot(stmt *dbr.SelectStmt, desc descriptor.Descriptor) *dbr.SelectStmt {
	return stmt.Where(dbr.Neq(desc.ParentColumn, nil))
}

// LimitDepth: depth BETWEEN d AND d+k, where d is self.Depth if
// persisted, else the precomputed level attached by the caller.
func (b *Builder[K]) LimitDepth(sess *dbr.Session, self *node.Node[K], k int) *dbr.SelectStmt {
	d := effectiveDepth(self)
	return b.Base(sess).Where(fmt.Sprintf("%s BETWEEN ? AND ?", b.Desc.DepthColumn), d, d+k)
}

// effectiveDepth is self.Depth for a persisted node, else self.Level:
// an unpersisted node's Depth is always its unset zero value, so
// LimitDepth would silently select the wrong band without this.
func effectiveDepth[K comparable](self *node.Node[K]) int {
	if self.Persisted() {
		return self.Depth
	}
	return self.Level
}

// AncestorsAndSelf: left <= self.left AND right >= self.right.
func (b *Builder[K]) AncestorsAndSelf(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return b.Base(sess).
		Where(dbr.Lte(b.Desc.LeftColumn, self.Left)).
		Where(dbr.Gte(b.Desc.RightColumn, self.Right))
}

// Ancestors: ancestorsAndSelf AND withoutSelf.
func (b *Builder[K]) Ancestors(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return WithoutSelf[K](b.AncestorsAndSelf(sess, self), b.Desc, self)
}

// DescendantsAndSelf: left >= self.left AND left < self.right.
func (b *Builder[K]) DescendantsAndSelf(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return b.Base(sess).
		Where(dbr.Gte(b.Desc.LeftColumn, self.Left)).
		Where(dbr.Lt(b.Desc.LeftColumn, self.Right))
}

// Descendants: descendantsAndSelf AND withoutSelf.
func (b *Builder[K]) Descendants(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return WithoutSelf[K](b.DescendantsAndSelf(sess, self), b.Desc, self)
}

// SiblingsAndSelf: parent = self.parent.
func (b *Builder[K]) SiblingsAndSelf(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	if self.Parent == nil {
		return b.Base(sess).Where(dbr.Eq(b.Desc.ParentColumn, nil))
	}
	return b.Base(sess).Where(dbr.Eq(b.Desc.ParentColumn, *self.Parent))
}

// Siblings: siblingsAndSelf AND withoutSelf.
func (b *Builder[K]) Siblings(sess *dbr.Session, self *node.Node[K]) *dbr.SelectStmt {
	return WithoutSelf[K](b.SiblingsAndSelf(sess, self), b.Desc, self)
}

// ToSQL renders a statement to its SQL string and bound args, ready
// for execution by the store package.
func ToSQL(stmt *dbr.SelectStmt) (string, []interface{}, error) {
	buf := dbr.NewBuffer()
	if err := stmt.Build(stmt.Dialect, buf); err != nil {
		return "", nil, err
	}
	return buf.String(), buf.Value(), nil
}
