// Package hooks implements the lifecycle hook ordering around a
// nested-set row's create/save/delete/restore cycle: assign tail
// bounds before create, detect a dirty parent before save, reparent
// and recompute depth after save, prune the subtree before delete,
// and reopen/unmask on restore. The pending-move state that a
// class-wide static would traditionally carry between the "saving"
// and "saved" steps is instead attached explicitly to a MoveContext
// value threaded by the caller, so concurrent saves never share it.
package hooks

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rokde/baum/libraries/nestedset/cache"
	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/events"
	"github.com/rokde/baum/libraries/nestedset/mover"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// PendingKind distinguishes the three outcomes the "saving" hook can
// leave for "saved" to act on: no move at all, become a root, or
// become a child of a captured parent id. The three-state form keeps
// ordinary saves that never touch parent from getting relocated to
// root on every write.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingRoot
	PendingChild
)

// MoveContext carries pending-move state for one logical save. Callers
// thread the same value through BeforeSave/AfterSave rather than
// stashing it on a shared field.
type MoveContext[K comparable] struct {
	Pending  PendingKind
	ParentID *K
}

// Hooks bundles the store, mover, and event bus a repository needs to
// run the lifecycle in the order the contract specifies.
type Hooks[K comparable] struct {
	Store       store.Store[K]
	Desc        descriptor.Descriptor
	Bus         events.Bus
	Mover       *mover.Mover[K]
	Cache       *cache.Cache[K]
	RecordClass string
	log         *logrus.Entry
}

func New[K comparable](st store.Store[K], desc descriptor.Descriptor, bus events.Bus, mv *mover.Mover[K], c *cache.Cache[K], recordClass string, logger *logrus.Logger) *Hooks[K] {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hooks[K]{Store: st, Desc: desc, Bus: bus, Mover: mv, Cache: c, RecordClass: recordClass, log: logger.WithField("component", "hooks")}
}

// BeforeCreate assigns tail bounds: left = M+1, right = M+2 where M is
// the current max right in scope, read under a shared lock.
func (h *Hooks[K]) BeforeCreate(ctx context.Context, tx store.Transaction, n *node.Node[K]) error {
	h.Bus.Dispatch(ctx, events.For("creating", h.RecordClass), events.Payload{Node: n})

	max, err := h.Store.MaxRight(ctx, tx, n.Scope, store.ShareLock)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "read max right for tail insert")
	}
	n.Left = max + 1
	n.Right = max + 2
	n.Depth = 0
	return nil
}

// BeforeSave detects a parent-pointer change and captures the pending
// move slot on mc. A brand-new row created with
// an initial parent is treated the same as an existing row whose
// parent column just went dirty: both need the post-save reparent.
func (h *Hooks[K]) BeforeSave(ctx context.Context, n *node.Node[K], mc *MoveContext[K]) error {
	h.Bus.Dispatch(ctx, events.For("saving", h.RecordClass), events.Payload{Node: n})

	changingParent := (n.Persisted() && n.IsDirty(node.FieldParent)) || (!n.Persisted() && n.Parent != nil)
	if !changingParent {
		mc.Pending = PendingNone
		mc.ParentID = nil
		return nil
	}
	if n.Parent == nil {
		mc.Pending = PendingRoot
		mc.ParentID = nil
		return nil
	}
	mc.Pending = PendingChild
	id := *n.Parent
	mc.ParentID = &id
	return nil
}

// AfterSave reparents via the Move Engine, which itself recomputes
// depth as part of its rewrite, and opens its own outer transaction.
func (h *Hooks[K]) AfterSave(ctx context.Context, n *node.Node[K], mc *MoveContext[K]) error {
	defer h.Bus.Dispatch(ctx, events.For("saved", h.RecordClass), events.Payload{Node: n})

	switch mc.Pending {
	case PendingNone:
		return nil
	case PendingRoot:
		_, err := h.Mover.Move(ctx, n, mover.Target[K]{}, mover.Root)
		return err
	case PendingChild:
		_, err := h.Mover.Move(ctx, n, mover.ByID[K](*mc.ParentID), mover.Child)
		return err
	default:
		return nil
	}
}

// BeforeDelete prunes n's entire subtree and closes the gap it leaves
// behind.
func (h *Hooks[K]) BeforeDelete(ctx context.Context, n *node.Node[K]) error {
	h.Bus.Dispatch(ctx, events.For("deleting", h.RecordClass), events.Payload{Node: n})

	tx, err := h.Store.Begin(ctx, nil)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "begin delete transaction")
	}
	fail := func(err error) error {
		_ = tx.Rollback()
		return err
	}

	if err := h.Store.LockFrom(ctx, tx, n.Scope, n.Left); err != nil {
		return fail(nserrors.Wrap(err, nserrors.StoreError, "lock subtree for delete"))
	}
	if _, err := h.Store.DeleteInterior(ctx, tx, n.Scope, n.Left, n.Right); err != nil {
		return fail(err)
	}

	width := n.Right - n.Left + 1
	if err := h.Store.ShiftLeft(ctx, tx, n.Scope, n.Right, true, -width); err != nil {
		return fail(err)
	}
	if err := h.Store.ShiftRight(ctx, tx, n.Scope, n.Right, true, -width); err != nil {
		return fail(err)
	}
	if err := h.Store.Delete(ctx, tx, n); err != nil {
		return fail(err)
	}

	if err := tx.Commit(); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "commit delete transaction")
	}
	if h.Cache != nil {
		h.Cache.PurgeScope(n.Scope)
	}
	return nil
}

// BeforeRestore reopens the bound range a soft-delete previously
// closed, the dual of the prune above.
func (h *Hooks[K]) BeforeRestore(ctx context.Context, n *node.Node[K]) error {
	h.Bus.Dispatch(ctx, events.For("restoring", h.RecordClass), events.Payload{Node: n})

	tx, err := h.Store.Begin(ctx, nil)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "begin restore transaction")
	}
	fail := func(err error) error {
		_ = tx.Rollback()
		return err
	}

	width := n.Right - n.Left + 1
	if err := h.Store.ShiftLeft(ctx, tx, n.Scope, n.Left, false, width); err != nil {
		return fail(err)
	}
	if err := h.Store.ShiftRight(ctx, tx, n.Scope, n.Left, false, width); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "commit restore transaction")
	}
	if h.Cache != nil {
		h.Cache.PurgeScope(n.Scope)
	}
	return nil
}

// AfterRestore unmasks descendants whose bounds lie strictly inside
// the restored node's range.
func (h *Hooks[K]) AfterRestore(ctx context.Context, n *node.Node[K]) error {
	defer h.Bus.Dispatch(ctx, events.For("restored", h.RecordClass), events.Payload{Node: n})

	tx, err := h.Store.Begin(ctx, nil)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "begin unmask transaction")
	}
	if err := h.Store.UnmaskDescendants(ctx, tx, n.Scope, n); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Create runs BeforeCreate, saves, then AfterSave, giving callers a
// single entry point that matches the record store's
// create-then-save sequence.
func (h *Hooks[K]) Create(ctx context.Context, n *node.Node[K]) error {
	tx, err := h.Store.Begin(ctx, nil)
	if err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "begin create transaction")
	}
	fail := func(err error) error {
		_ = tx.Rollback()
		return err
	}

	if err := h.BeforeCreate(ctx, tx, n); err != nil {
		return fail(err)
	}
	mc := &MoveContext[K]{}
	if err := h.BeforeSave(ctx, n, mc); err != nil {
		return fail(err)
	}
	if err := h.Store.Save(ctx, tx, n); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return nserrors.Wrap(err, nserrors.StoreError, "commit create transaction")
	}
	if h.Cache != nil {
		h.Cache.PurgeScope(n.Scope)
	}
	// AfterSave opens its own outer transaction via the Move Engine
	//, so it runs after the initial insert lands.
	return h.AfterSave(ctx, n, mc)
}

// Save runs BeforeSave, persists the dirty columns, then AfterSave.
func (h *Hooks[K]) Save(ctx context.Context, n *node.Node[K]) error {
	mc := &MoveContext[K]{}
	if err := h.BeforeSave(ctx, n, mc); err != nil {
		return err
	}
	if mc.Pending == PendingNone {
		if err := h.Store.Save(ctx, nil, n); err != nil {
			return err
		}
	}
	// When a reparent is pending, the Move Engine performs the
	// structural update; any other dirty non-structural columns would
	// be saved by the host ORM's own save path, out of this core's
	// scope.
	return h.AfterSave(ctx, n, mc)
}

// Delete runs BeforeDelete, which does all of the work.
func (h *Hooks[K]) Delete(ctx context.Context, n *node.Node[K]) error {
	return h.BeforeDelete(ctx, n)
}

// Restore runs BeforeRestore then AfterRestore in sequence.
func (h *Hooks[K]) Restore(ctx context.Context, n *node.Node[K]) error {
	if err := h.BeforeRestore(ctx, n); err != nil {
		return err
	}
	n.DeletedAt = nil
	return h.AfterRestore(ctx, n)
}
