package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokde/baum/libraries/nestedset/cache"
	"github.com/rokde/baum/libraries/nestedset/node"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := cache.New[int64](8)
	require.NoError(t, err)

	scope := map[string]any{"tenant_id": 1}
	n := node.New[int64](5)
	c.Put(scope, n)

	got, ok := c.Get(scope, 5)
	require.True(t, ok)
	assert.Equal(t, n, got)

	_, ok = c.Get(scope, 6)
	assert.False(t, ok)
}

func TestKeyIsOrderIndependentOverScope(t *testing.T) {
	a := map[string]any{"tenant_id": 1, "site_id": 2}
	b := map[string]any{"site_id": 2, "tenant_id": 1}
	assert.Equal(t, cache.Key[int64](a, 9), cache.Key[int64](b, 9))
}

func TestPurgeScopeOnlyDropsThatScope(t *testing.T) {
	c, err := cache.New[int64](8)
	require.NoError(t, err)

	scopeA := map[string]any{"tenant_id": 1}
	scopeB := map[string]any{"tenant_id": 2}
	c.Put(scopeA, node.New[int64](1))
	c.Put(scopeB, node.New[int64](2))

	c.PurgeScope(scopeA)

	_, ok := c.Get(scopeA, 1)
	assert.False(t, ok)
	_, ok = c.Get(scopeB, 2)
	assert.True(t, ok, "purging scope A must not evict scope B's entries")
}

func TestNilCacheIsANoOp(t *testing.T) {
	var c *cache.Cache[int64]
	c.Put(nil, node.New[int64](1))
	_, ok := c.Get(nil, 1)
	assert.False(t, ok)
	c.PurgeScope(nil)
}
