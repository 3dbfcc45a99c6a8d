package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/store"
)

// seedFiveNodeTree builds root[1,10]d0 -> a[2,5]d1 -> a1[3,4]d2, and
// root -> b[6,9]d1 -> b1[7,8]d2.
func seedFiveNodeTree(t *testing.T) (*store.MemStore[int64], map[string]*node.Node[int64]) {
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
	return st, map[string]*node.Node[int64]{"root": root, "a": a, "a1": a1, "b": b, "b1": b1}
}

func ids(rows []*node.Node[int64]) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestQueryRootsReturnsOnlyParentlessRows(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryRoots, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["root"].ID}, ids(rows))
}

func TestQueryAllLeavesReturnsEveryRowWithNoChildren(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryAllLeaves, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a1"].ID, n["b1"].ID}, ids(rows))
}

func TestQueryLeavesScopesToSelfsSubtree(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryLeaves, nil, n["root"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a1"].ID, n["b1"].ID}, ids(rows))
}

func TestQueryAllTrunksReturnsInteriorNonRootRows(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryAllTrunks, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a"].ID, n["b"].ID}, ids(rows))
}

func TestQueryTrunksReturnsInteriorNonRootRowsInsideSelf(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryTrunks, nil, n["root"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a"].ID, n["b"].ID}, ids(rows))
}

func TestQueryAncestorsAndSelfIncludesTheRowItself(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryAncestorsAndSelf, nil, n["a1"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["root"].ID, n["a"].ID, n["a1"].ID}, ids(rows))
}

func TestQueryAncestorsExcludesTheRowItself(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryAncestors, nil, n["a1"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["root"].ID, n["a"].ID}, ids(rows))
}

func TestQueryDescendantsAndSelfIncludesEntireSubtree(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryDescendantsAndSelf, nil, n["root"])
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestQueryDescendantsExcludesSelf(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryDescendants, nil, n["a"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a1"].ID}, ids(rows))
}

func TestQuerySiblingsAndSelfSharesTheSameParent(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QuerySiblingsAndSelf, nil, n["a"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["a"].ID, n["b"].ID}, ids(rows))
}

func TestQuerySiblingsExcludesSelf(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QuerySiblings, nil, n["a"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["b"].ID}, ids(rows))
}

func TestQueryLimitDepthBoundsByDepthOffset(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rows, err := st.Query(context.Background(), nil, store.QueryLimitDepth, nil, n["root"], 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["root"].ID, n["a"].ID, n["b"].ID}, ids(rows))
}

func TestQueryLimitDepthFallsBackToSelfLevelWhenUnpersisted(t *testing.T) {
	st, n := seedFiveNodeTree(t)

	unpersisted := node.New[int64](99)
	unpersisted.Depth = 99 // must be ignored; this row was never saved
	unpersisted.Level = 0

	rows, err := st.Query(context.Background(), nil, store.QueryLimitDepth, nil, unpersisted, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["root"].ID, n["a"].ID, n["b"].ID}, ids(rows))
}

func TestRewriteBoundsShiftsBothIntervalsAndReparents(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	newParent := n["b"].ID
	rw := store.BoundsRewrite[int64]{
		A: 2, B: 5, DeltaAB: 3,
		C: 6, D: 6, DeltaCD: -4,
		MovedID:   n["a"].ID,
		NewParent: &newParent,
	}
	require.NoError(t, st.RewriteBounds(context.Background(), nil, nil, rw))

	a, err := st.Get(context.Background(), nil, nil, n["a"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Left)
	assert.Equal(t, 8, a.Right)
	require.NotNil(t, a.Parent)
	assert.Equal(t, newParent, *a.Parent)

	a1, err := st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 6, a1.Left)
	assert.Equal(t, 7, a1.Right)
}

func TestDeleteInteriorRemovesOnlyStrictlyNestedRows(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	removed, err := st.DeleteInterior(context.Background(), nil, nil, n["a"].Left, n["a"].Right)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	assert.Error(t, err)
	_, err = st.Get(context.Background(), nil, nil, n["a"].ID, store.NoLock)
	assert.NoError(t, err, "a itself sits on the boundary and must survive an exclusive delete")
}

func TestShiftLeftAddsDeltaAboveThreshold(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	require.NoError(t, st.ShiftLeft(context.Background(), nil, nil, n["b"].Left, false, 2))

	b, err := st.Get(context.Background(), nil, nil, n["b"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 8, b.Left)

	a, err := st.Get(context.Background(), nil, nil, n["a"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Left, "rows below the threshold are untouched")
}

func TestShiftRightAddsDeltaAboveThreshold(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	require.NoError(t, st.ShiftRight(context.Background(), nil, nil, n["a"].Right, true, 5))

	root, err := st.Get(context.Background(), nil, nil, n["root"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 15, root.Right)
}

func TestSetDepthWritesExactlyOneRow(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	require.NoError(t, st.SetDepth(context.Background(), nil, nil, n["a1"].ID, 9))

	a1, err := st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 9, a1.Depth)

	a, err := st.Get(context.Background(), nil, nil, n["a"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Depth)
}

func TestSetDepthReportsRecordNotFound(t *testing.T) {
	st := store.NewMemStore[int64](nil)
	err := st.SetDepth(context.Background(), nil, nil, 404, 1)
	assert.Error(t, err)
}

func TestSetBoundsOverwritesExistingLeftRightAndParent(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	rootID := n["root"].ID

	require.NoError(t, st.SetBounds(context.Background(), nil, nil, n["a1"].ID, &rootID, 40, 41))

	a1, err := st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 40, a1.Left)
	assert.Equal(t, 41, a1.Right)
	require.NotNil(t, a1.Parent)
	assert.Equal(t, rootID, *a1.Parent)
}

func TestSetBoundsReportsRecordNotFound(t *testing.T) {
	st := store.NewMemStore[int64](nil)
	err := st.SetBounds(context.Background(), nil, nil, 404, nil, 1, 2)
	assert.Error(t, err)
}

func TestShiftDepthAppliesOnlyToStrictDescendants(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	require.NoError(t, st.ShiftDepth(context.Background(), nil, nil, n["a"], -1))

	a1, err := st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 1, a1.Depth)

	a, err := st.Get(context.Background(), nil, nil, n["a"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Depth, "self is excluded from its own shift")
}

func TestUnmaskDescendantsClearsSoftDeleteBelowSelf(t *testing.T) {
	st, n := seedFiveNodeTree(t)
	deletedAt := time.Now()
	n["a1"].DeletedAt = &deletedAt

	require.NoError(t, st.UnmaskDescendants(context.Background(), nil, nil, n["a"]))

	a1, err := st.Get(context.Background(), nil, nil, n["a1"].ID, store.NoLock)
	require.NoError(t, err)
	assert.Nil(t, a1.DeletedAt)
}

func TestSaveInsertsUnpersistedRowsAndMarksThemPersisted(t *testing.T) {
	st := store.NewMemStore[int64](nil)
	n := node.New[int64](1)
	require.NoError(t, st.Save(context.Background(), nil, n))
	assert.True(t, n.Persisted())

	reloaded, err := st.Get(context.Background(), nil, nil, 1, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, n, reloaded)
}

func TestGetReturnsRecordNotFoundForMissingID(t *testing.T) {
	st := store.NewMemStore[int64](nil)
	_, err := st.Get(context.Background(), nil, nil, 1, store.NoLock)
	assert.Error(t, err)
}

func TestMaxRightScansOnlyWithinScope(t *testing.T) {
	st := store.NewMemStore[int64]([]string{"tenant_id"})
	a := node.New[int64](1)
	a.Right = 4
	a.Scope = map[string]any{"tenant_id": 1}
	b := node.New[int64](2)
	b.Right = 20
	b.Scope = map[string]any{"tenant_id": 2}
	st.Seed(a, b)

	max, err := st.MaxRight(context.Background(), nil, map[string]any{"tenant_id": 1}, store.NoLock)
	require.NoError(t, err)
	assert.Equal(t, 4, max)
}
