package cache

import "sync"

var _ Cache = (*LRUCache)(nil)

// LRUCache implements a cache. It uses a linked list as
// the primary data structure along with a hash-map for
// checking existance of an element in the cache.
//
// The head of the linked list is always the most recently
// used element, so eviction takes the tail.
type LRUCache struct {
	capacity int
	m        map[string]*DLLNode
	dll      *DoublyLinkedList
	mu       sync.Mutex
}

// NewLRUCache creates a new LRUCache of provided size.
func NewLRUCache(capacity int) (*LRUCache, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &LRUCache{
		capacity: capacity,
		m:        make(map[string]*DLLNode),
		dll:      NewDoublyLinkedList(),
	}, nil
}

// Get returns a copy of the cached value and bumps it to the MRU position.
func (lru *LRUCache) Get(key string) ([]byte, error) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	node, ok := lru.m[key]
	if !ok {
		return nil, ErrElementDoesntExist
	}
	lru.dll.MoveToFront(node)
	return append([]byte(nil), node.Value...), nil
}

// Put inserts or overwrites key at the MRU position.
func (lru *LRUCache) Put(key string, value []byte) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	value = append([]byte(nil), value...)
	if node, ok := lru.m[key]; ok {
		node.Value = value
		lru.dll.MoveToFront(node)
		return
	}
	if len(lru.m) == lru.capacity {
		tail := lru.dll.Tail
		lru.dll.DeleteNode(tail)
		delete(lru.m, tail.Key)
	}
	node := &DLLNode{Key: key, Value: value}
	lru.dll.PushFront(node)
	lru.m[key] = node
}

// Remove deletes key from the cache.
func (lru *LRUCache) Remove(key string) bool {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	node, ok := lru.m[key]
	if !ok {
		return false
	}
	lru.dll.DeleteNode(node)
	delete(lru.m, key)
	return true
}

// Capacity returns the max capacity of the cache.
func (lru *LRUCache) Capacity() int {
	return lru.capacity
}

// Len returns the number of elements in the cache.
func (lru *LRUCache) Len() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return len(lru.m)
}
