package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokde/baum/libraries/nestedset/collection"
	"github.com/rokde/baum/libraries/nestedset/node"
)

func intPtr(v int) *int { return &v }

func TestBuildAttachesChildrenByParentID(t *testing.T) {
	root := node.New[int64](1)
	var rootID int64 = 1
	a := node.New[int64](2)
	a.SetParent(&rootID)
	b := node.New[int64](3)
	b.SetParent(&rootID)

	forest := collection.Build([]*node.Node[int64]{root, a, b})
	require.Len(t, forest, 1)
	assert.Equal(t, root, forest[0].Node)
	require.Len(t, forest[0].Children, 2)
}

func TestBuildTreatsUnresolvedParentAsRoot(t *testing.T) {
	var missing int64 = 99
	orphan := node.New[int64](1)
	orphan.SetParent(&missing)

	forest := collection.Build([]*node.Node[int64]{orphan})
	require.Len(t, forest, 1)
	assert.Equal(t, orphan, forest[0].Node)
}

func TestBuildPreservesInputOrderWithinASiblingList(t *testing.T) {
	root := node.New[int64](1)
	var rootID int64 = 1
	c := node.New[int64](2)
	c.SetParent(&rootID)
	a := node.New[int64](3)
	a.SetParent(&rootID)
	b := node.New[int64](4)
	b.SetParent(&rootID)

	forest := collection.Build([]*node.Node[int64]{root, c, a, b})
	require.Len(t, forest[0].Children, 3)
	assert.Equal(t, []int64{2, 3, 4}, []int64{
		forest[0].Children[0].Node.ID,
		forest[0].Children[1].Node.ID,
		forest[0].Children[2].Node.ID,
	})
}

func TestBuildOrderedSortsSiblingsByOrderColumn(t *testing.T) {
	root := node.New[int64](1)
	var rootID int64 = 1

	c := node.New[int64](2)
	c.SetParent(&rootID)
	c.Order = intPtr(3)
	c.Left = 10

	a := node.New[int64](3)
	a.SetParent(&rootID)
	a.Order = intPtr(1)
	a.Left = 20

	b := node.New[int64](4)
	b.SetParent(&rootID)
	b.Order = intPtr(2)
	b.Left = 30

	forest := collection.BuildOrdered([]*node.Node[int64]{root, c, a, b})
	require.Len(t, forest[0].Children, 3)
	assert.Equal(t, []int64{3, 4, 2}, []int64{
		forest[0].Children[0].Node.ID,
		forest[0].Children[1].Node.ID,
		forest[0].Children[2].Node.ID,
	})
}

func TestBuildOrderedTieBreaksOnLeftWhenOrderCollides(t *testing.T) {
	rootA := node.New[int64](1)
	rootA.Order = intPtr(1)
	rootA.Left = 5

	rootB := node.New[int64](2)
	rootB.Order = intPtr(1)
	rootB.Left = 1

	forest := collection.BuildOrdered([]*node.Node[int64]{rootA, rootB})
	require.Len(t, forest, 2, "both roots must survive even though they share an Order value")
	assert.Equal(t, int64(2), forest[0].Node.ID, "the lower Left value breaks the Order tie")
	assert.Equal(t, int64(1), forest[1].Node.ID)
}
