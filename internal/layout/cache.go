package layout

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"hbind/internal/types"
)

const defaultCacheSize = 4096

type cacheEntry struct {
	Layout *MemoryLayout
	Err    *LayoutError
}

// cache is shared by the workers laying out top-level declarations.
type cache struct {
	byType *lru.Cache[types.TypeID, *cacheEntry]
}

func newCache(size int) *cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[types.TypeID, *cacheEntry](size)
	if err != nil {
		// lru.New fails only for a non-positive size
		panic(err)
	}
	return &cache{byType: c}
}

func (c *cache) get(id types.TypeID) (*cacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	return c.byType.Get(id)
}

func (c *cache) put(id types.TypeID, entry *cacheEntry) {
	if c == nil {
		return
	}
	if entry == nil {
		c.byType.Remove(id)
		return
	}
	c.byType.Add(id, entry)
}

// CacheLen reports how many layouts are cached.
func (e *LayoutEngine) CacheLen() int {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.byType.Len()
}
