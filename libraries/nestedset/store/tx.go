package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Tx is a transaction handle. Nested Begin calls thread the parent
// handle through explicitly rather than tracking depth on a shared
// Store field, so unrelated scopes never contend on the same counter.
type Tx struct {
	raw    *sqlx.Tx
	level  int
	closed bool
}

// Level reports the nesting depth.
func (t *Tx) Level() int { return t.level }

// Commit commits only when this is the outermost handle (level 1);
// inner handles no-op, so nested transactions flatten into the
// outermost commit/rollback.
func (t *Tx) Commit() error {
	if t.closed {
		return nil
	}
	if t.level > 1 {
		return nil
	}
	t.closed = true
	return t.raw.Commit()
}

// Rollback always propagates regardless of nesting: on any failure the
// engine must not leave partial bound updates.
func (t *Tx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.raw.Rollback()
}

func beginRoot(ctx context.Context, db *sqlx.DB) (*Tx, error) {
	raw, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{raw: raw, level: 1}, nil
}

// nest returns a child handle sharing the same underlying *sqlx.Tx one
// level deeper.
func nest(parent *Tx) *Tx {
	return &Tx{raw: parent.raw, level: parent.level + 1}
}
