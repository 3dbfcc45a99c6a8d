// Package descriptor names the structural columns of a nested-set table
// and derives their table-qualified forms.
package descriptor

import "fmt"

// Descriptor configures the five structural columns of a nested-set
// table plus the zero-or-more scope columns that partition it into
// independent forests.
type Descriptor struct {
	Table string

	IDColumn     string
	ParentColumn string
	LeftColumn   string
	RightColumn  string
	DepthColumn  string

	// OrderColumn, when empty, falls back to LeftColumn as the
	// ordering key.
	OrderColumn string

	ScopeColumns []string
}

// Default returns the descriptor with the conventional column names
// used by the reference nested-set implementations.
func Default(table string) Descriptor {
	return Descriptor{
		Table:        table,
		IDColumn:     "id",
		ParentColumn: "parent_id",
		LeftColumn:   "lft",
		RightColumn:  "rgt",
		DepthColumn:  "depth",
	}
}

// Scoped reports whether this descriptor partitions its table by one
// or more scope columns.
func (d Descriptor) Scoped() bool {
	return len(d.ScopeColumns) > 0
}

// Order returns the effective ordering column: OrderColumn if set,
// otherwise LeftColumn.
func (d Descriptor) Order() string {
	if d.OrderColumn != "" {
		return d.OrderColumn
	}
	return d.LeftColumn
}

// Qualify returns "table.column" for a bare column name.
func (d Descriptor) Qualify(column string) string {
	return fmt.Sprintf("%s.%s", d.Table, column)
}

// QualifiedParent, QualifiedLeft, QualifiedRight, QualifiedDepth and
// QualifiedOrder return the table-qualified forms of the corresponding
// structural columns.
func (d Descriptor) QualifiedID() string     { return d.Qualify(d.IDColumn) }
func (d Descriptor) QualifiedParent() string { return d.Qualify(d.ParentColumn) }
func (d Descriptor) QualifiedLeft() string   { return d.Qualify(d.LeftColumn) }
func (d Descriptor) QualifiedRight() string  { return d.Qualify(d.RightColumn) }
func (d Descriptor) QualifiedDepth() string  { return d.Qualify(d.DepthColumn) }
func (d Descriptor) QualifiedOrder() string  { return d.Qualify(d.Order()) }

// QualifiedScopes returns the table-qualified scope columns in
// declaration order.
func (d Descriptor) QualifiedScopes() []string {
	out := make([]string, len(d.ScopeColumns))
	for i, c := range d.ScopeColumns {
		out[i] = d.Qualify(c)
	}
	return out
}
