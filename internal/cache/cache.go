package cache

// Cache describes a bounded key/value cache.
type Cache interface {
	// Get returns the value stored for key and marks it most recently
	// used. ErrElementDoesntExist is returned on a miss.
	Get(key string) ([]byte, error)
	// Put stores value under key as the most recently used element,
	// evicting the least recently used one if the cache is full.
	Put(key string, value []byte)
	// Remove drops key from the cache. It reports whether key was present.
	Remove(key string) bool
	// Capacity returns the max capacity of the cache.
	Capacity() int
	// Len returns the number of elements currently in the cache.
	Len() int
}
