package mover_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/events"
	"github.com/rokde/baum/libraries/nestedset/keymutex"
	"github.com/rokde/baum/libraries/nestedset/metrics"
	"github.com/rokde/baum/libraries/nestedset/mover"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/setbuilder"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// tree:
//   1 root      [1,10]
//     2 a       [2,5]
//       3 a1    [3,4]
//     4 b       [6,9]
//       5 b1    [7,8]
func seedTwoBranchTree(t *testing.T) *store.MemStore[int64] {
	t.Helper()
	st := store.NewMemStore[int64](nil)

	root := node.New[int64](1)
	root.Left, root.Right, root.Depth = 1, 10, 0

	var rootID int64 = 1
	a := node.New[int64](2)
	a.Left, a.Right, a.Depth = 2, 5, 1
	a.SetParent(&rootID)

	var aID int64 = 2
	a1 := node.New[int64](3)
	a1.Left, a1.Right, a1.Depth = 3, 4, 2
	a1.SetParent(&aID)

	b := node.New[int64](4)
	b.Left, b.Right, b.Depth = 6, 9, 1
	b.SetParent(&rootID)

	var bID int64 = 4
	b1 := node.New[int64](5)
	b1.Left, b1.Right, b1.Depth = 7, 8, 2
	b1.SetParent(&bID)

	st.Seed(root, a, a1, b, b1)
	return st
}

func newMover(t *testing.T, st store.Store[int64], bus events.Bus) *mover.Mover[int64] {
	t.Helper()
	if bus == nil {
		bus = events.NewInMemoryBus(nil)
	}
	return mover.New[int64](st, descriptor.Default("categories"), bus, keymutex.New(), metrics.New(nil), nil, "category", nil)
}

func TestMoveChildRelocatesSubtreeUnderNewParent(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	a, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)

	_, err = mv.Move(context.Background(), a, mover.ByID[int64](4), mover.Child)
	require.NoError(t, err)

	valid, err := setbuilder.IsValidNestedSet[int64](context.Background(), st, nil)
	require.NoError(t, err)
	assert.True(t, valid)

	moved, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)
	require.NotNil(t, moved.Parent)
	assert.Equal(t, int64(4), *moved.Parent)
	assert.Equal(t, 2, moved.Depth)

	descendant, err := st.Get(context.Background(), nil, nil, 3, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 3, descendant.Depth)
}

func TestMoveToRootDetachesFromParent(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	b, err := st.Get(context.Background(), nil, nil, 4, store.NoLock)
	require.NoError(t, err)

	_, err = mv.Move(context.Background(), b, mover.Target[int64]{}, mover.Root)
	require.NoError(t, err)

	moved, err := st.Get(context.Background(), nil, nil, 4, store.NoLock)
	require.NoError(t, err)
	assert.Nil(t, moved.Parent)
	assert.Equal(t, 0, moved.Depth)

	valid, err := setbuilder.IsValidNestedSet[int64](context.Background(), st, nil)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestMoveRejectsTargetInsideOwnSubtree(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	a, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)

	_, err = mv.Move(context.Background(), a, mover.ByID[int64](3), mover.Child)
	assert.Error(t, err)
}

func TestMoveRejectsSelfAsTarget(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	a, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)

	_, err = mv.Move(context.Background(), a, mover.ByID[int64](2), mover.Child)
	assert.Error(t, err)
}

func TestMoveVetoedByMovingEventIsCleanNoOp(t *testing.T) {
	st := seedTwoBranchTree(t)
	bus := events.NewInMemoryBus(nil)
	bus.Subscribe(events.For("moving", "category"), func(ctx context.Context, p events.Payload) (bool, error) {
		return false, nil
	})
	mv := newMover(t, st, bus)

	a, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)
	before := *a

	result, err := mv.Move(context.Background(), a, mover.ByID[int64](4), mover.Child)
	require.NoError(t, err)
	assert.Equal(t, before.Left, result.Left)
	assert.Equal(t, before.Right, result.Right)

	reloaded, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, before.Left, reloaded.Left)
}

func TestMoveRejectsUnsavedNode(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	unsaved := node.New[int64](99)
	_, err := mv.Move(context.Background(), unsaved, mover.Target[int64]{}, mover.Root)
	assert.Error(t, err)
}

func TestMoveRejectsInvalidPosition(t *testing.T) {
	st := seedTwoBranchTree(t)
	mv := newMover(t, st, nil)

	a, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)

	_, err = mv.Move(context.Background(), a, mover.ByID[int64](4), mover.Position("sideways"))
	assert.Error(t, err)
}
