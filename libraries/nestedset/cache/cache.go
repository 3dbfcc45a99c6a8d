// Package cache provides a bounded LRU of recently reloaded node
// snapshots keyed by (scope, id).
package cache

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rokde/baum/libraries/nestedset/node"
)

// Cache holds recently reloaded *node.Node[K] snapshots for repeated
// ancestorsAndSelf/descendantsAndSelf-style reads between mutations.
// SQLStore consults it on unlocked reads and populates it as rows come
// back from the database; the Move Engine and lifecycle hooks purge
// the whole scope on any structural mutation so a stale snapshot never
// survives past the write that invalidated it.
type Cache[K comparable] struct {
	inner *lru.Cache[string, *node.Node[K]]
}

// New returns a Cache holding at most size entries.
func New[K comparable](size int) (*Cache[K], error) {
	c, err := lru.New[string, *node.Node[K]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[K]{inner: c}, nil
}

// Key derives the cache key for a scope tuple and id.
func Key[K comparable](scope map[string]any, id K) string {
	return fmt.Sprintf("%s\x00%v", scopeSignature(scope), id)
}

// scopeSignature deterministically encodes a scope tuple regardless of
// map iteration order.
func scopeSignature(scope map[string]any) string {
	if len(scope) == 0 {
		return ""
	}
	keys := make([]string, 0, len(scope))
	for k := range scope {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, scope[k]))
	}
	return strings.Join(parts, "&")
}

// Get returns the cached node for (scope, id), if present.
func (c *Cache[K]) Get(scope map[string]any, id K) (*node.Node[K], bool) {
	if c == nil {
		return nil, false
	}
	return c.inner.Get(Key(scope, id))
}

// Put stores a snapshot for (scope, n.ID).
func (c *Cache[K]) Put(scope map[string]any, n *node.Node[K]) {
	if c == nil {
		return
	}
	c.inner.Add(Key(scope, n.ID), n)
}

// PurgeScope drops every cached entry for a scope. Called after any
// structural mutation, since a single move can renumber every row in
// the scope.
func (c *Cache[K]) PurgeScope(scope map[string]any) {
	if c == nil {
		return
	}
	prefix := scopeSignature(scope) + "\x00"
	for _, k := range c.inner.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.inner.Remove(k)
		}
	}
}
