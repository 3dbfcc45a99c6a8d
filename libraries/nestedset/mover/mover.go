// Package mover implements the Move Engine: the core bounds-rewriting
// transaction that relocates a node (and its entire subtree) to an
// arbitrary position using a single bounds-rewriting update, under a
// database transaction with appropriate row locking.
package mover

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rokde/baum/libraries/nestedset/cache"
	"github.com/rokde/baum/libraries/nestedset/depth"
	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/events"
	"github.com/rokde/baum/libraries/nestedset/keymutex"
	"github.com/rokde/baum/libraries/nestedset/metrics"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/nserrors"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// Position is one of the four move-position literals: relative to a
// target node as its child, its left sibling, its right sibling, or
// detached as a new root.
type Position string

const (
	Child Position = "child"
	Left  Position = "left"
	Right Position = "right"
	Root  Position = "root"
)

func validPosition(p Position) bool {
	switch p {
	case Child, Left, Right, Root:
		return true
	default:
		return false
	}
}

// Target is either an already-loaded node or a bare id to be resolved
// from the store.
type Target[K comparable] struct {
	Node *node.Node[K]
	ID   *K
}

func ByNode[K comparable](n *node.Node[K]) Target[K] { return Target[K]{Node: n} }
func ByID[K comparable](id K) Target[K]              { return Target[K]{ID: &id} }

// Mover is the Move Engine.
type Mover[K comparable] struct {
	Store       store.Store[K]
	Desc        descriptor.Descriptor
	Bus         events.Bus
	Locker      keymutex.KeyMutex
	Metrics     *metrics.Metrics
	Cache       *cache.Cache[K]
	RecordClass string
	log         *logrus.Entry
}

// New constructs a Mover. logger may be nil.
func New[K comparable](st store.Store[K], desc descriptor.Descriptor, bus events.Bus, locker keymutex.KeyMutex, m *metrics.Metrics, c *cache.Cache[K], recordClass string, logger *logrus.Logger) *Mover[K] {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mover[K]{
		Store: st, Desc: desc, Bus: bus, Locker: locker, Metrics: m, Cache: c,
		RecordClass: recordClass,
		log:         logger.WithField("component", "mover"),
	}
}

// quadruple holds the sorted (a, b, c, d) delimiting the two intervals
// a bounds rewrite shifts.
type quadruple struct{ a, b, c, d int }

// Move relocates s to the given position relative to target. It
// returns s as given, without reloading it, on a moving-event veto —
// a clean no-op, not an error.
func (mv *Mover[K]) Move(ctx context.Context, s *node.Node[K], target Target[K], position Position) (*node.Node[K], error) {
	if !validPosition(position) {
		return nil, nserrors.New(nserrors.MoveNotPossible, "invalid position %q", position)
	}
	if !s.Persisted() {
		return nil, nserrors.New(nserrors.MoveNotPossible, "cannot move an unsaved node")
	}

	var resolvedTarget *node.Node[K]
	var err error
	if position != Root {
		resolvedTarget, err = mv.resolveTarget(ctx, s, target)
		if err != nil {
			return nil, err
		}
		if resolvedTarget.ID == s.ID {
			return nil, nserrors.New(nserrors.MoveNotPossible, "target equals source")
		}
		if resolvedTarget.InsideSubtree(s) {
			return nil, nserrors.New(nserrors.MoveNotPossible, "target is inside source's own subtree")
		}
		if !resolvedTarget.InSameScope(s) {
			return nil, nserrors.New(nserrors.MoveNotPossible, "target is in a different scope")
		}
	}

	payload := events.Payload{Node: s, Target: resolvedTarget, Position: position}
	movingEvent := events.For("moving", mv.RecordClass)
	ok, err := mv.Bus.Until(ctx, movingEvent, payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		mv.log.WithField("id", fmt.Sprint(s.ID)).Debug("move vetoed by moving event")
		return s, nil
	}

	scope := s.Scope
	b1, err := mv.boundary(ctx, s, resolvedTarget, position, scope)
	if err != nil {
		return nil, err
	}
	if b1 > s.Right {
		b1--
	}

	if b1 == s.Left || b1 == s.Right {
		// hasChange short-circuit: no structural effect, but "moved"
		// still fires.
		mv.Bus.Dispatch(ctx, events.For("moved", mv.RecordClass), payload)
		return s, nil
	}

	start := time.Now()
	result, err := mv.rewrite(ctx, s, resolvedTarget, position, scope, b1)
	if mv.Metrics != nil {
		mv.Metrics.MoveDuration.Observe(time.Since(start).Seconds())
		label := "ok"
		if err != nil {
			label = "error"
		}
		mv.Metrics.MovesTotal.WithLabelValues(label).Inc()
	}
	if err != nil {
		return nil, err
	}

	mv.Bus.Dispatch(ctx, events.For("moved", mv.RecordClass), payload)
	return result, nil
}

func (mv *Mover[K]) resolveTarget(ctx context.Context, s *node.Node[K], target Target[K]) (*node.Node[K], error) {
	if target.Node != nil {
		return target.Node, nil
	}
	if target.ID == nil {
		return nil, nserrors.New(nserrors.MoveNotPossible, "no target given for a non-root move")
	}
	t, err := mv.Store.Get(ctx, nil, s.Scope, *target.ID, store.NoLock)
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.MoveNotPossible, "target %v does not resolve", *target.ID)
	}
	return t, nil
}

func (mv *Mover[K]) boundary(ctx context.Context, s, target *node.Node[K], position Position, scope map[string]any) (int, error) {
	switch position {
	case Child:
		return target.Right, nil
	case Left:
		return target.Left, nil
	case Right:
		return target.Right + 1, nil
	case Root:
		max, err := mv.Store.MaxRight(ctx, nil, scope, store.ShareLock)
		if err != nil {
			return 0, err
		}
		return max + 1, nil
	default:
		return 0, nserrors.New(nserrors.MoveNotPossible, "invalid position %q", position)
	}
}

func newParentFor[K comparable](target *node.Node[K], position Position) *K {
	switch position {
	case Root:
		return nil
	case Child:
		id := target.ID
		return &id
	default: // Left, Right
		return target.Parent
	}
}

func sortQuad(values [4]int) quadruple {
	v := values
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
	return quadruple{a: v[0], b: v[1], c: v[2], d: v[3]}
}

func (mv *Mover[K]) rewrite(ctx context.Context, s, target *node.Node[K], position Position, scope map[string]any, b1 int) (*node.Node[K], error) {
	// One key per scope: every move within the same scope serializes.
	var zero K
	lockKey := cache.Key[K](scope, zero)
	if mv.Locker != nil {
		waitStart := time.Now()
		if err := mv.Locker.Lock(ctx, lockKey); err != nil {
			return nil, nserrors.Wrap(err, nserrors.StoreError, "acquire scope lock")
		}
		if mv.Metrics != nil {
			mv.Metrics.LockWaitSeconds.Observe(time.Since(waitStart).Seconds())
		}
		defer mv.Locker.Unlock(lockKey)
	}

	var b2 int
	if b1 > s.Right {
		b2 = s.Right + 1
	} else {
		b2 = s.Left - 1
	}
	q := sortQuad([4]int{s.Left, s.Right, b1, b2})

	tx, err := mv.Store.Begin(ctx, nil)
	if err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "begin move transaction")
	}
	commit := func() error { return tx.Commit() }
	fail := func(err error) (*node.Node[K], error) {
		_ = tx.Rollback()
		return nil, err
	}

	if err := mv.Store.LockBoundsRange(ctx, tx, scope, q.a, q.d); err != nil {
		return fail(nserrors.Wrap(err, nserrors.StoreError, "lock bounds range"))
	}

	rw := store.BoundsRewrite[K]{
		A: q.a, B: q.b, C: q.c, D: q.d,
		DeltaAB: q.d - q.b, DeltaCD: q.a - q.c,
		MovedID:   s.ID,
		NewParent: newParentFor(target, position),
	}
	if err := mv.Store.RewriteBounds(ctx, tx, scope, rw); err != nil {
		return fail(err)
	}

	if target != nil {
		reloadedTarget, err := mv.Store.Get(ctx, tx, scope, target.ID, store.NoLock)
		if err != nil {
			return fail(err)
		}
		*target = *reloadedTarget
	}

	reloadedSelf, err := mv.Store.Get(ctx, tx, scope, s.ID, store.NoLock)
	if err != nil {
		return fail(err)
	}
	*s = *reloadedSelf

	if err := depth.RecomputeSubtree[K](ctx, tx, mv.Store, scope, s); err != nil {
		return fail(err)
	}

	reloadedSelf, err = mv.Store.Get(ctx, tx, scope, s.ID, store.NoLock)
	if err != nil {
		return fail(err)
	}
	*s = *reloadedSelf

	if err := commit(); err != nil {
		return nil, nserrors.Wrap(err, nserrors.StoreError, "commit move transaction")
	}
	if mv.Cache != nil {
		mv.Cache.PurgeScope(scope)
	}
	return s, nil
}
