package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gocraft/dbr/v2"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rokde/baum/libraries/nestedset/cache"
	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/dialect"
	"github.com/rokde/baum/libraries/nestedset/metrics"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
	"github.com/rokde/baum/libraries/nestedset/query"
)

// SQLStore is the database/sql + jmoiron/sqlx + gocraft/dbr/v2
// implementation of Store. dbr is used
// purely as a statement builder (Builder.Base/.Roots/etc. followed by
// ToSql()); sqlx executes the resulting SQL and scans rows, including
// the caller's dynamic scope/extra columns via MapScan.
type SQLStore[K comparable] struct {
	db      *sqlx.DB
	session *dbr.Session
	grammar dialect.Grammar
	desc    descriptor.Descriptor
	codec   IDCodec[K]
	cache   *cache.Cache[K]
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewSQLStore opens a Store against an already-configured *sql.DB.
func NewSQLStore[K comparable](
	db *sql.DB,
	driverName string,
	desc descriptor.Descriptor,
	grammar dialect.Grammar,
	codec IDCodec[K],
	m *metrics.Metrics,
	log *logrus.Logger,
) *SQLStore[K] {
	if log == nil {
		log = logrus.New()
	}
	conn := &dbr.Connection{DB: db, Dialect: grammar.Raw(), EventReceiver: &dbr.NullEventReceiver{}}
	return &SQLStore[K]{
		db:      sqlx.NewDb(db, driverName),
		session: conn.NewSession(nil),
		grammar: grammar,
		desc:    desc,
		codec:   codec,
		metrics: m,
		log:     log.WithField("component", "store"),
	}
}

// WithCache attaches a node cache to the store.
func (s *SQLStore[K]) WithCache(c *cache.Cache[K]) *SQLStore[K] {
	s.cache = c
	return s
}

// Descriptor returns the column descriptor this store was opened
// with.
func (s *SQLStore[K]) Descriptor() descriptor.Descriptor {
	return s.desc
}

func (s *SQLStore[K]) Begin(ctx context.Context, parent Transaction) (Transaction, error) {
	if parent != nil {
		if t, ok := parent.(*Tx); ok {
			return nest(t), nil
		}
		return nil, fmt.Errorf("nstree: parent transaction is not a *store.Tx")
	}
	tx, err := beginRoot(ctx, s.db)
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "begin transaction")
	}
	return tx, nil
}

func rawTx(tx Transaction) *sqlx.Tx {
	if tx == nil {
		return nil
	}
	if t, ok := tx.(*Tx); ok {
		return t.raw
	}
	return nil
}

func lockClause(g dialect.Grammar, lock LockMode) string {
	switch lock {
	case ForUpdate:
		return " " + g.ForUpdateClause()
	case ShareLock:
		return " " + g.ShareLockClause()
	default:
		return ""
	}
}

func (s *SQLStore[K]) Get(ctx context.Context, tx Transaction, scope map[string]any, id K, lock LockMode) (*node.Node[K], error) {
	if lock == NoLock && tx == nil {
		if n, ok := s.cache.Get(scope, id); ok {
			return n, nil
		}
	}

	b := query.New[K](s.desc, scope)
	stmt := b.Base(s.session).Where(dbr.Eq(s.desc.IDColumn, s.codec.Encode(id))).Limit(1)
	sqlStr, args, err := query.ToSQL(stmt)
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "build get query")
	}
	sqlStr += lockClause(s.grammar, lock)

	rows, err := s.queryRows(ctx, tx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nserrors.New(nserrors.RecordNotFound, "no row for id %v in table %s", id, s.desc.Table)
	}
	s.cache.Put(scope, rows[0])
	return rows[0], nil
}

func (s *SQLStore[K]) MaxRight(ctx context.Context, tx Transaction, scope map[string]any, lock LockMode) (int, error) {
	b := query.New[K](s.desc, scope)
	stmt := s.session.Select(fmt.Sprintf("COALESCE(MAX(%s), 0) AS max_right", s.desc.RightColumn)).From(s.desc.Table)
	for _, col := range s.desc.ScopeColumns {
		stmt = stmt.Where(dbr.Eq(col, scope[col]))
	}
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return 0, nserrors.Wrap(err, nserrors.StoreError, "build max-right query")
	}
	sqlStr += lockClause(s.grammar, lock)

	var maxRight int
	if err := s.get(ctx, tx, &maxRight, sqlStr, args...); err != nil {
		return 0, nserrors.Wrap(err, nserrors.StoreError, "read max right")
	}
	return maxRight, nil
}

func (s *SQLStore[K]) Query(ctx context.Context, tx Transaction, kind QueryKind, scope map[string]any, self *node.Node[K], extra ...any) ([]*node.Node[K], error) {
	b := query.New[K](s.desc, scope)
	var stmt *dbr.SelectStmt
	switch kind {
	case QueryRoots:
		stmt = b.Roots(s.session)
	case QueryAllLeaves:
		stmt = b.AllLeaves(s.session)
	case QueryLeaves:
		stmt = b.Leaves(s.session, self)
	case QueryAllTrunks:
		stmt = b.AllTrunks(s.session)
	case QueryTrunks:
		stmt = b.Trunks(s.session, self)
	case QueryAncestorsAndSelf:
		stmt = b.AncestorsAndSelf(s.session, self)
	case QueryAncestors:
		stmt = b.Ancestors(s.session, self)
	case QueryDescendantsAndSelf:
		stmt = b.DescendantsAndSelf(s.session, self)
	case QueryDescendants:
		stmt = b.Descendants(s.session, self)
	case QuerySiblingsAndSelf:
		stmt = b.SiblingsAndSelf(s.session, self)
	case QuerySiblings:
		stmt = b.Siblings(s.session, self)
	case QueryLimitDepth:
		k := 0
		if len(extra) > 0 {
			k = extra[0].(int)
		}
		stmt = b.LimitDepth(s.session, self, k)
	default:
		return nil, fmt.Errorf("nstree: unknown query kind %d", kind)
	}

	sqlStr, args, err := query.ToSQL(stmt)
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "build query")
	}
	rows, err := s.queryRows(ctx, tx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		s.cache.Put(scope, r)
	}
	return rows, nil
}

func (s *SQLStore[K]) Save(ctx context.Context, tx Transaction, n *node.Node[K]) error {
	if !n.Persisted() {
		cols := []string{s.desc.IDColumn, s.desc.ParentColumn, s.desc.LeftColumn, s.desc.RightColumn, s.desc.DepthColumn}
		vals := []any{s.codec.Encode(n.ID), encodeParent(s.codec, n.Parent), n.Left, n.Right, n.Depth}
		if s.desc.OrderColumn != "" {
			cols = append(cols, s.desc.OrderColumn)
			vals = append(vals, encodeOrder(n.Order))
		}
		for _, c := range s.desc.ScopeColumns {
			cols = append(cols, c)
			vals = append(vals, n.Scope[c])
		}
		for c, v := range n.Extra {
			cols = append(cols, c)
			vals = append(vals, v)
		}
		stmt := s.session.InsertInto(s.desc.Table).Columns(cols...).Values(vals...)
		sqlStr, args, err := stmt.ToSql()
		if err != nil {
			return nserrors.Wrap(err, nserrors.StoreError, "build insert")
		}
		if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
			return nserrors.Wrap(err, nserrors.StoreError, "insert row")
		}
		n.MarkPersisted()
		return nil
	}

	sets := map[string]any{}
	if n.IsDirty(node.FieldParent) {
		sets[s.desc.ParentColumn] = encodeParent(s.codec, n.Parent)
	}
	if n.IsDirty(node.FieldLeft) {
		sets[s.desc.LeftColumn] = n.Left
	}
	if n.IsDirty(node.FieldRight) {
		sets[s.desc.RightColumn] = n.Right
	}
	if n.IsDirty(node.FieldDepth) {
		sets[s.desc.DepthColumn] = n.Depth
	}
	if s.desc.OrderColumn != "" && n.IsDirty(node.FieldOrder) {
		sets[s.desc.OrderColumn] = encodeOrder(n.Order)
	}
	if n.IsDirty(node.FieldDeletedAt) {
		sets["deleted_at"] = n.DeletedAt
	}
	if len(sets) == 0 {
		return nil
	}
	stmt := s.session.Update(s.desc.Table).SetMap(sets).Where(dbr.Eq(s.desc.IDColumn, s.codec.Encode(n.ID)))
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build update")
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "update row")
	}
	n.ClearDirty()
	return nil
}

func (s *SQLStore[K]) Delete(ctx context.Context, tx Transaction, n *node.Node[K]) error {
	stmt := s.session.DeleteFrom(s.desc.Table).Where(dbr.Eq(s.desc.IDColumn, s.codec.Encode(n.ID)))
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build delete")
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "delete row")
	}
	return nil
}

func (s *SQLStore[K]) LockBoundsRange(ctx context.Context, tx Transaction, scope map[string]any, lo, hi int) error {
	b := query.New[K](s.desc, scope)
	stmt := b.Base(s.session).
		Where(fmt.Sprintf("(%s BETWEEN ? AND ?) OR (%s BETWEEN ? AND ?)",
			s.desc.LeftColumn, s.desc.RightColumn), lo, hi, lo, hi)
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build lock-range query")
	}
	sqlStr += lockClause(s.grammar, ForUpdate)
	_, err = s.queryRows(ctx, tx, sqlStr, args)
	return err
}

func (s *SQLStore[K]) LockFrom(ctx context.Context, tx Transaction, scope map[string]any, threshold int) error {
	b := query.New[K](s.desc, scope)
	stmt := b.Base(s.session).Where(dbr.Gte(s.desc.LeftColumn, threshold))
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build lock-from query")
	}
	sqlStr += lockClause(s.grammar, ForUpdate)
	_, err = s.queryRows(ctx, tx, sqlStr, args)
	return err
}

// rewriteBoundsSQL assembles the Move Engine's single conditional
// update via a hand-written CASE/WHEN, identifiers quoted through the
// Grammar rather than dbr's expression builder, since dbr has no
// native CASE/WHEN helper. Split out from RewriteBounds so the
// statement text and argument list can be asserted on directly,
// without a live database.
func rewriteBoundsSQL[K comparable](desc descriptor.Descriptor, grammar dialect.Grammar, codec IDCodec[K], scope map[string]any, rw BoundsRewrite[K]) (string, []any) {
	left, right, parent, id := grammar.Wrap(desc.LeftColumn), grammar.Wrap(desc.RightColumn), grammar.Wrap(desc.ParentColumn), grammar.Wrap(desc.IDColumn)

	sqlStr := fmt.Sprintf(
		`UPDATE %s SET
			%s = CASE WHEN %s BETWEEN ? AND ? THEN %s + ? WHEN %s BETWEEN ? AND ? THEN %s + ? ELSE %s END,
			%s = CASE WHEN %s BETWEEN ? AND ? THEN %s + ? WHEN %s BETWEEN ? AND ? THEN %s + ? ELSE %s END,
			%s = CASE WHEN %s = ? THEN ? ELSE %s END
		 WHERE (%s BETWEEN ? AND ?) OR (%s BETWEEN ? AND ?)`,
		desc.Table,
		left, left, left, left, left, left,
		right, right, right, right, right, right,
		parent, id, parent,
		left, right,
	)
	args := []any{
		rw.A, rw.B, rw.DeltaAB, rw.C, rw.D, rw.DeltaCD,
		rw.A, rw.B, rw.DeltaAB, rw.C, rw.D, rw.DeltaCD,
		codec.Encode(rw.MovedID), encodeParent(codec, rw.NewParent),
		rw.A, rw.D, rw.A, rw.D,
	}
	for _, col := range desc.ScopeColumns {
		sqlStr += fmt.Sprintf(" AND %s = ?", grammar.Wrap(col))
		args = append(args, scope[col])
	}
	return sqlStr, args
}

// RewriteBounds issues the Move Engine's single conditional UPDATE.
func (s *SQLStore[K]) RewriteBounds(ctx context.Context, tx Transaction, scope map[string]any, rw BoundsRewrite[K]) error {
	sqlStr, args := rewriteBoundsSQL(s.desc, s.grammar, s.codec, scope, rw)
	_, err := s.exec(ctx, tx, sqlStr, args...)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "rewrite bounds")
	}
	return nil
}

func (s *SQLStore[K]) DeleteInterior(ctx context.Context, tx Transaction, scope map[string]any, exclusiveLo, exclusiveHi int) (int64, error) {
	b := query.New[K](s.desc, scope)
	stmt := s.session.DeleteFrom(s.desc.Table)
	for _, col := range s.desc.ScopeColumns {
		stmt = stmt.Where(dbr.Eq(col, scope[col]))
	}
	stmt = stmt.
		Where(dbr.Gt(s.desc.LeftColumn, exclusiveLo)).
		Where(dbr.Lt(s.desc.RightColumn, exclusiveHi))
	_ = b
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return 0, nserrors.Wrap(err, nserrors.StoreError, "build delete-interior")
	}
	n, err := s.exec(ctx, tx, sqlStr, args...)
	if err != nil {
		return 0, nserrors.Wrap(err, nserrors.StoreError, "delete interior")
	}
	return n, nil
}

func (s *SQLStore[K]) shift(ctx context.Context, tx Transaction, scope map[string]any, column string, threshold int, strict bool, delta int) error {
	op := ">"
	if !strict {
		op = ">="
	}
	col := s.grammar.Wrap(column)
	sqlStr := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE %s %s ?", s.desc.Table, col, col, col, op)
	args := []any{delta, threshold}
	for _, c := range s.desc.ScopeColumns {
		sqlStr += fmt.Sprintf(" AND %s = ?", s.grammar.Wrap(c))
		args = append(args, scope[c])
	}
	_, err := s.exec(ctx, tx, sqlStr, args...)
	return err
}

func (s *SQLStore[K]) ShiftLeft(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error {
	if err := s.shift(ctx, tx, scope, s.desc.LeftColumn, threshold, strict, delta); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "shift left bounds")
	}
	return nil
}

func (s *SQLStore[K]) ShiftRight(ctx context.Context, tx Transaction, scope map[string]any, threshold int, strict bool, delta int) error {
	if err := s.shift(ctx, tx, scope, s.desc.RightColumn, threshold, strict, delta); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "shift right bounds")
	}
	return nil
}

func (s *SQLStore[K]) SetDepth(ctx context.Context, tx Transaction, scope map[string]any, id K, level int) error {
	stmt := s.session.Update(s.desc.Table).Set(s.desc.DepthColumn, level).Where(dbr.Eq(s.desc.IDColumn, s.codec.Encode(id)))
	sqlStr, args, err := stmt.ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build set-depth")
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "set depth")
	}
	return nil
}

// setBoundsStmt builds the unconditional point-write SetBounds issues,
// split out so the statement can be inspected without a live session.
func setBoundsStmt[K comparable](sess *dbr.Session, desc descriptor.Descriptor, codec IDCodec[K], scope map[string]any, id K, parent *K, left, right int) *dbr.UpdateStmt {
	stmt := sess.Update(desc.Table).
		Set(desc.LeftColumn, left).
		Set(desc.RightColumn, right).
		Set(desc.ParentColumn, encodeParent(codec, parent)).
		Where(dbr.Eq(desc.IDColumn, codec.Encode(id)))
	for _, c := range desc.ScopeColumns {
		stmt = stmt.Where(dbr.Eq(c, scope[c]))
	}
	return stmt
}

func (s *SQLStore[K]) SetBounds(ctx context.Context, tx Transaction, scope map[string]any, id K, parent *K, left, right int) error {
	sqlStr, args, err := setBoundsStmt(s.session, s.desc, s.codec, scope, id, parent, left, right).ToSql()
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "build set-bounds")
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "set bounds")
	}
	return nil
}

func (s *SQLStore[K]) ShiftDepth(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K], delta int) error {
	depth := s.grammar.Wrap(s.desc.DepthColumn)
	left := s.grammar.Wrap(s.desc.LeftColumn)
	right := s.grammar.Wrap(s.desc.RightColumn)
	sqlStr := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE %s > ? AND %s < ?", s.desc.Table, depth, depth, left, right)
	args := []any{delta, self.Left, self.Right}
	for _, c := range s.desc.ScopeColumns {
		sqlStr += fmt.Sprintf(" AND %s = ?", s.grammar.Wrap(c))
		args = append(args, scope[c])
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "shift depth")
	}
	return nil
}

func (s *SQLStore[K]) UnmaskDescendants(ctx context.Context, tx Transaction, scope map[string]any, self *node.Node[K]) error {
	left := s.grammar.Wrap(s.desc.LeftColumn)
	right := s.grammar.Wrap(s.desc.RightColumn)
	sqlStr := fmt.Sprintf("UPDATE %s SET deleted_at = NULL WHERE %s > ? AND %s < ?", s.desc.Table, left, right)
	args := []any{self.Left, self.Right}
	for _, c := range s.desc.ScopeColumns {
		sqlStr += fmt.Sprintf(" AND %s = ?", s.grammar.Wrap(c))
		args = append(args, scope[c])
	}
	if _, err := s.exec(ctx, tx, sqlStr, args...); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "unmask descendants")
	}
	return nil
}

// --- low-level execution helpers ---

func (s *SQLStore[K]) exec(ctx context.Context, tx Transaction, sqlStr string, args ...any) (int64, error) {
	start := time.Now()
	defer func() { s.log.WithField("elapsed", time.Since(start)).Trace("exec") }()

	var res sql.Result
	var err error
	if raw := rawTx(tx); raw != nil {
		res, err = raw.ExecContext(ctx, sqlStr, args...)
	} else {
		res, err = s.db.ExecContext(ctx, sqlStr, args...)
	}
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return res.RowsAffected()
}

func (s *SQLStore[K]) get(ctx context.Context, tx Transaction, dest any, sqlStr string, args ...any) error {
	if raw := rawTx(tx); raw != nil {
		return raw.GetContext(ctx, dest, sqlStr, args...)
	}
	return s.db.GetContext(ctx, dest, sqlStr, args...)
}

func (s *SQLStore[K]) queryRows(ctx context.Context, tx Transaction, sqlStr string, args []any) ([]*node.Node[K], error) {
	var rs *sqlx.Rows
	var err error
	if raw := rawTx(tx); raw != nil {
		rs, err = raw.QueryxContext(ctx, sqlStr, args...)
	} else {
		rs, err = s.db.QueryxContext(ctx, sqlStr, args...)
	}
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "query rows")
	}
	defer rs.Close()

	var out []*node.Node[K]
	for rs.Next() {
		raw := map[string]any{}
		if err := rs.MapScan(raw); err != nil {
			return nil, nserrors.Wrap(err, nserrors.StoreError, "scan row")
		}
		n, err := s.rowToNode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rs.Err()
}

func (s *SQLStore[K]) rowToNode(raw map[string]any) (*node.Node[K], error) {
	n := node.New[K](*new(K))
	id, err := s.codec.Decode(raw[s.desc.IDColumn])
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "decode id")
	}
	n.ID = id

	if pv := raw[s.desc.ParentColumn]; pv != nil {
		pid, err := s.codec.Decode(pv)
		if err != nil {
			return nil, nserrors.Wrap(err, nserrors.StoreError, "decode parent id")
		}
		n.Parent = &pid
	}
	n.Left = toInt(raw[s.desc.LeftColumn])
	n.Right = toInt(raw[s.desc.RightColumn])
	n.Depth = toInt(raw[s.desc.DepthColumn])

	known := map[string]bool{
		s.desc.IDColumn:     true,
		s.desc.ParentColumn: true,
		s.desc.LeftColumn:   true,
		s.desc.RightColumn:  true,
		s.desc.DepthColumn:  true,
	}
	if s.desc.OrderColumn != "" {
		n.Order = toIntPtr(raw[s.desc.OrderColumn])
		known[s.desc.OrderColumn] = true
	}

	scope := map[string]any{}
	extra := map[string]any{}
	for _, c := range s.desc.ScopeColumns {
		scope[c] = raw[c]
		known[c] = true
	}
	for k, v := range raw {
		if !known[k] {
			extra[k] = v
		}
	}
	n.Scope = scope
	n.Extra = extra
	n.MarkPersisted()
	return n, nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int32:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func encodeParent[K comparable](codec IDCodec[K], parent *K) any {
	if parent == nil {
		return nil
	}
	return codec.Encode(*parent)
}

func encodeOrder(order *int) any {
	if order == nil {
		return nil
	}
	return *order
}

func toIntPtr(v any) *int {
	if v == nil {
		return nil
	}
	n := toInt(v)
	return &n
}
