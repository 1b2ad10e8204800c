package cache

import "time"

// Cache is a bounded in-memory store for values that are expensive to read
// from the chain and rarely or never change, such as contract terms.
type Cache interface {
	// Get returns (value, true) on a hit and (nil, false) on a miss.
	Get(key string) (interface{}, bool)

	// Set stores a value. A zero ttl keeps the value until evicted.
	// Admission is best effort: false means the value was dropped.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Wait blocks until buffered writes are visible to Get.
	Wait()

	// Clear removes all values.
	Clear()

	// Close releases resources.
	Close()
}
