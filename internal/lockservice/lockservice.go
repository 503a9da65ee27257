package lockservice

import (
	"context"
	"time"
)

// LockService describes a lock service component that serializes
// read-modify-write sequences on shared resources. This service is a
// standalone, in-process component; it is not persisted and every
// lock is implicitly released when the process exits.
type LockService interface {
	// Acquire blocks until the lock on the given key is obtained, the
	// wait exceeds maxWait or the context is done. A non-positive
	// maxWait falls back to the service default.
	Acquire(ctx context.Context, key LockKey, maxWait time.Duration) error
	// Release removes the lock on the given key. It reports whether a
	// lock was actually held; releasing a free key is not an error.
	Release(key LockKey) bool
	// IsLocked is a point-in-time check whether the key is held.
	IsLocked(key LockKey) bool
}

// LockKey identifies a single lockable resource. Two keys contend
// only if both components are exactly equal.
type LockKey struct {
	ResourceType string
	ResourceID   string
}

// NewLockKey returns a key for the given resource type and id.
func NewLockKey(resourceType, resourceID string) LockKey {
	return LockKey{
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// String renders the key as "type:id" for logs and errors. It is not
// an identity: distinct keys may render the same.
func (k LockKey) String() string {
	return k.ResourceType + ":" + k.ResourceID
}

// LockEntry represents one held lock. The holder is not tracked;
// release is expected from the same logical request that acquired.
type LockEntry struct {
	Key        LockKey
	AcquiredAt time.Time
}

// Age returns how long the entry has been held as of now.
func (e LockEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.AcquiredAt)
}
