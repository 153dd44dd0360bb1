package cache

// IDForTest returns the identifier backing key.
func (c *Cache) IDForTest(key string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.index.Get(indexEntry{key: key})
	return entry.id, ok
}
