package hooks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokde/baum/libraries/nestedset/descriptor"
	"github.com/rokde/baum/libraries/nestedset/events"
	"github.com/rokde/baum/libraries/nestedset/hooks"
	"github.com/rokde/baum/libraries/nestedset/keymutex"
	"github.com/rokde/baum/libraries/nestedset/mover"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/setbuilder"
	"github.com/rokde/baum/libraries/nestedset/store"
)

func newHooks(t *testing.T) (*hooks.Hooks[int64], *store.MemStore[int64]) {
	t.Helper()
	st := store.NewMemStore[int64](nil)
	bus := events.NewInMemoryBus(nil)
	mv := mover.New[int64](st, descriptor.Default("categories"), bus, keymutex.New(), nil, nil, "category", nil)
	h := hooks.New[int64](st, descriptor.Default("categories"), bus, mv, nil, "category", nil)
	return h, st
}

func TestCreateAssignsTailBoundsAndFiresEvents(t *testing.T) {
	h, st := newHooks(t)
	var fired []string
	for _, action := range []string{"creating", "saving", "saved"} {
		action := action
		h.Bus.Subscribe(events.For(action, "category"), func(ctx context.Context, p events.Payload) (bool, error) {
			fired = append(fired, action)
			return true, nil
		})
	}

	n := node.New[int64](1)
	require.NoError(t, h.Create(context.Background(), n))

	assert.Equal(t, 1, n.Left)
	assert.Equal(t, 2, n.Right)
	assert.True(t, n.Persisted())
	assert.Equal(t, []string{"creating", "saving", "saved"}, fired)

	reloaded, err := st.Get(context.Background(), nil, nil, 1, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, n.Left, reloaded.Left)
}

func TestCreateWithInitialParentReparentsAfterInsert(t *testing.T) {
	h, st := newHooks(t)

	root := node.New[int64](1)
	require.NoError(t, h.Create(context.Background(), root))

	var rootID int64 = 1
	child := node.New[int64](2)
	child.SetParent(&rootID)
	require.NoError(t, h.Create(context.Background(), child))

	reloaded, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Parent)
	assert.Equal(t, int64(1), *reloaded.Parent)
	assert.Equal(t, 1, reloaded.Depth)

	valid, err := setbuilder.IsValidNestedSet[int64](context.Background(), st, nil)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSaveWithoutParentChangeDoesNotInvokeMover(t *testing.T) {
	h, st := newHooks(t)
	n := node.New[int64](1)
	require.NoError(t, h.Create(context.Background(), n))

	moving := 0
	h.Bus.Subscribe(events.For("moving", "category"), func(ctx context.Context, p events.Payload) (bool, error) {
		moving++
		return true, nil
	})

	n.Extra["name"] = "root"
	require.NoError(t, h.Save(context.Background(), n))
	assert.Equal(t, 0, moving, "an ordinary save must never trigger the Move Engine")

	reloaded, err := st.Get(context.Background(), nil, nil, 1, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, "root", reloaded.Extra["name"])
}

func TestSaveWithChangedParentReparentsViaMover(t *testing.T) {
	h, st := newHooks(t)

	root := node.New[int64](1)
	require.NoError(t, h.Create(context.Background(), root))
	other := node.New[int64](2)
	require.NoError(t, h.Create(context.Background(), other))

	reloadedOther, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)

	reloadedOther.SetParent(&root.ID)
	require.NoError(t, h.Save(context.Background(), reloadedOther))

	final, err := st.Get(context.Background(), nil, nil, 2, store.NoLock)
	require.NoError(t, err)
	require.NotNil(t, final.Parent)
	assert.Equal(t, root.ID, *final.Parent)
}

func TestDeletePrunesSubtreeAndClosesGap(t *testing.T) {
	h, st := newHooks(t)

	root := node.New[int64](1)
	require.NoError(t, h.Create(context.Background(), root))
	var rootID int64 = 1
	child := node.New[int64](2)
	child.SetParent(&rootID)
	require.NoError(t, h.Create(context.Background(), child))
	other := node.New[int64](3)
	require.NoError(t, h.Create(context.Background(), other))

	reloadedRoot, err := st.Get(context.Background(), nil, nil, 1, store.NoLock)
	require.NoError(t, err)

	require.NoError(t, h.Delete(context.Background(), reloadedRoot))

	_, err = st.Get(context.Background(), nil, nil, 1, store.NoLock)
	assert.Error(t, err, "the deleted row itself must be gone")
	_, err = st.Get(context.Background(), nil, nil, 2, store.NoLock)
	assert.Error(t, err, "the deleted subtree's child must be gone too")

	survivor, err := st.Get(context.Background(), nil, nil, 3, store.NoLock)
	require.NoError(t, err)
	assert.NotNil(t, survivor)

	valid, err := setbuilder.IsValidNestedSet[int64](context.Background(), st, nil)
	require.NoError(t, err)
	assert.True(t, valid, "the gap left by delete must be fully closed")
}
