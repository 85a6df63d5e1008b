package cache

import "time"

// runCleanup 周期性地清理过期条目，直到 Close 被调用。
// 清理是可选的补充手段，读取路径上的惰性过期不依赖它。
func (c *Cache[K, V]) runCleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

// sweep 在一个临界区内移除所有已过期的条目。
// 每个被移除的条目计为一次淘汰，与读取时的惰性过期保持同一口径。
func (c *Cache[K, V]) sweep() {
	now := time.Now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			c.removeLocked(key)
			c.countEviction()
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.log.Debugf("清理过期条目 %d 个", removed)
	}
}
