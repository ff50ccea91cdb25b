package value

// Cache is ChronoScript's string cache (C1): a dense, reusable slab of
// byte strings addressed by index, grounded on original_source/StrCache.h
// and StrCache.cpp. It keeps one shared pool rather than separate
// persistent/temporary slabs, distinguishing the two disciplines purely by
// refcount + a pendingRelease worklist, matching the C original's
// tempRefs list.
type Cache struct {
	entries        []entry
	freeList       []int32 // indices available for pop, LIFO like strcache_index/top
	pendingRelease []int32 // indices whose refcount may have reached zero
}

type entry struct {
	bytes []byte
	ref   int32
	hash  uint64
	live  bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Pop allocates a fresh slot holding s with refcount 0, enrolled in the
// pending-release list (mirrors StrCache::pop).
func (c *Cache) Pop(s string) int32 {
	idx := c.alloc()
	c.entries[idx] = entry{bytes: []byte(s), ref: 0, live: true}
	c.pendingRelease = append(c.pendingRelease, idx)
	return idx
}

// PopPersistent allocates a slot already refcount-1, for constant folding
// and values that must survive the next temporary sweep (mirrors
// StrCache_PopPersistent).
func (c *Cache) PopPersistent(s string) int32 {
	idx := c.Pop(s)
	c.Ref(idx)
	return idx
}

func (c *Cache) alloc() int32 {
	if n := len(c.freeList); n > 0 {
		idx := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		return idx
	}
	idx := int32(len(c.entries))
	c.entries = append(c.entries, entry{})
	return idx
}

// Ref increments index's refcount.
func (c *Cache) Ref(index int32) {
	c.entries[index].ref++
}

// Unref decrements index's refcount and, on reaching zero, re-enrolls it
// in the pending-release list (mirrors StrCache::unref).
func (c *Cache) Unref(index int32) {
	e := &c.entries[index]
	e.ref--
	if e.ref == 0 {
		c.pendingRelease = append(c.pendingRelease, index)
	}
}

// Get returns the bytes stored at index as a string.
func (c *Cache) Get(index int32) string {
	return string(c.entries[index].bytes)
}

// Len returns the byte length of the string at index.
func (c *Cache) Len(index int32) int {
	return len(c.entries[index].bytes)
}

// ClearTemporary frees every enrolled slot whose refcount is still zero
// (mirrors StrCache::clearTemporary). Slots promoted via Ref in the
// meantime are skipped and simply drop out of the worklist.
func (c *Cache) ClearTemporary() {
	for _, idx := range c.pendingRelease {
		e := &c.entries[idx]
		if e.live && e.ref == 0 {
			e.bytes = nil
			e.live = false
			c.freeList = append(c.freeList, idx)
		}
	}
	c.pendingRelease = c.pendingRelease[:0]
}

// FindString returns the index of an already-cached, referenced string
// equal to s, or -1 if none exists (mirrors StrCache::findString; used by
// constant folding's content-addressable lookup).
func (c *Cache) FindString(s string) int32 {
	for i := range c.entries {
		e := &c.entries[i]
		if e.live && e.ref > 0 && string(e.bytes) == s {
			return int32(i)
		}
	}
	return -1
}

// SetHash lazily computes and caches index's hash (mirrors setHash's
// idempotent compute-once discipline).
func (c *Cache) SetHash(index int32) uint64 {
	e := &c.entries[index]
	if e.hash == 0 {
		e.hash = fnv1a(e.bytes)
	}
	return e.hash
}

func fnv1a(b []byte) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	if h == 0 {
		h = 1 // reserve 0 to mean "uncomputed"
	}
	return h
}
