package webhook

import (
	"fmt"
	"sync"
)

// defaultDedupeCapacity bounds the in-memory duplicate suppression window.
// The cache is not persisted; a restart clears it.
const defaultDedupeCapacity = 1000

// dedupeCache is a bounded set with FIFO eviction: when full, the oldest
// inserted key is dropped regardless of how recently it was checked.
// CheckAndAdd is the only operation, so check-then-insert is atomic.
type dedupeCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	present  map[string]struct{}
}

func newDedupeCache(capacity int) *dedupeCache {
	if capacity <= 0 {
		capacity = defaultDedupeCapacity
	}
	return &dedupeCache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		present:  make(map[string]struct{}, capacity),
	}
}

// CheckAndAdd reports whether the key was already present, inserting it
// when it was not.
func (c *dedupeCache) CheckAndAdd(key string) (seen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.present[key]; ok {
		return true
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.present, oldest)
	}
	c.order = append(c.order, key)
	c.present[key] = struct{}{}
	return false
}

// Len reports how many keys are currently held.
func (c *dedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// dedupeKey builds the composite key for one deliverable sub-item. The
// release label distinguishes repeat deliveries of the same logical item
// (proper, repack).
func dedupeKey(parentID, itemID int64, releaseLabel string) string {
	return fmt.Sprintf("%d:%d:%s", parentID, itemID, releaseLabel)
}
