package lockservice

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for the manager options.
const (
	DefaultMaxWait       = 5 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultMaxAge        = 30 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// SafeLockMap is the lock table: one entry per held key. It is keyed by
// the LockKey struct; LockKey.String is for logs only.
type SafeLockMap struct {
	LockMap map[LockKey]LockEntry
	Mutex   sync.Mutex
}

// Options tunes a ResourceLockManager. Zero values fall back to the defaults.
type Options struct {
	// MaxWait bounds Acquire when the caller passes no wait of its own.
	MaxWait time.Duration
	// PollInterval is how often a waiting Acquire re-checks the key.
	PollInterval time.Duration
	// MaxAge is the age after which RunSweeper reclaims an entry.
	MaxAge time.Duration
	// SweepInterval is the period of RunSweeper.
	SweepInterval time.Duration
	// Clock defaults to the system clock.
	Clock Clock
	// ErrorHandler receives acquisition errors other than timeouts
	// from the middleware. Defaults to a 500 JSON response.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

var _ LockService = (*ResourceLockManager)(nil)

// ResourceLockManager provides mutual exclusion per (resource type, id)
// across concurrently running request handlers in one process.
//
// Waiters poll the table instead of being woken on release, so there is
// no ordering among waiters: whichever poll observes the free key first
// wins. Abandoned entries are reclaimed by the stale sweep.
type ResourceLockManager struct {
	log     zerolog.Logger
	opts    Options
	lockMap *SafeLockMap
}

// NewResourceLockManager creates and returns a new lock manager ready to use.
func NewResourceLockManager(log zerolog.Logger, opts Options) *ResourceLockManager {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = defaultErrorHandler
	}
	return &ResourceLockManager{
		log:  log,
		opts: opts,
		lockMap: &SafeLockMap{
			LockMap: make(map[LockKey]LockEntry),
		},
	}
}

// Acquire blocks until the key is free and inserts an entry for it.
// A context that is already done never takes the lock. It gives up with ErrLockTimeout once maxWait has elapsed, or with the
// context's error if ctx is done first; in both cases nothing is left
// in the table.
func (lm *ResourceLockManager) Acquire(ctx context.Context, key LockKey, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = lm.opts.MaxWait
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if lm.tryAcquire(key) {
		lm.log.Debug().
			Str("resource_type", key.ResourceType).
			Str("resource_id", key.ResourceID).
			Msg("locked")
		return nil
	}

	start := time.Now()
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(lm.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lm.log.Debug().
				Str("resource_type", key.ResourceType).
				Str("resource_id", key.ResourceID).
				Dur("waited", time.Since(start)).
				Msg("gave up waiting, context done")
			return ctx.Err()
		case <-deadline.C:
			if lm.tryAcquire(key) {
				lm.logAcquiredAfterWait(key, start)
				return nil
			}
			lm.log.Warn().
				Str("resource_type", key.ResourceType).
				Str("resource_id", key.ResourceID).
				Dur("waited", time.Since(start)).
				Msg("can't acquire, timed out")
			return fmt.Errorf("%s: %w", key, ErrLockTimeout)
		case <-ticker.C:
			if lm.tryAcquire(key) {
				lm.logAcquiredAfterWait(key, start)
				return nil
			}
		}
	}
}

// tryAcquire is the atomic check-and-insert.
func (lm *ResourceLockManager) tryAcquire(key LockKey) bool {
	lm.lockMap.Mutex.Lock()
	defer lm.lockMap.Mutex.Unlock()
	if _, ok := lm.lockMap.LockMap[key]; ok {
		return false
	}
	lm.lockMap.LockMap[key] = LockEntry{
		Key:        key,
		AcquiredAt: lm.opts.Clock.Now(),
	}
	return true
}

func (lm *ResourceLockManager) logAcquiredAfterWait(key LockKey, start time.Time) {
	lm.log.Debug().
		Str("resource_type", key.ResourceType).
		Str("resource_id", key.ResourceID).
		Dur("waited", time.Since(start)).
		Msg("locked after waiting")
}

// Release removes the entry for the key and reports whether one existed.
func (lm *ResourceLockManager) Release(key LockKey) bool {
	lm.lockMap.Mutex.Lock()
	entry, ok := lm.lockMap.LockMap[key]
	if ok {
		delete(lm.lockMap.LockMap, key)
	}
	lm.lockMap.Mutex.Unlock()

	if !ok {
		lm.log.Debug().
			Str("resource_type", key.ResourceType).
			Str("resource_id", key.ResourceID).
			Msg("release of unheld lock ignored")
		return false
	}
	lm.log.Debug().
		Str("resource_type", key.ResourceType).
		Str("resource_id", key.ResourceID).
		Dur("held_for", entry.Age(lm.opts.Clock.Now())).
		Msg("released")
	return true
}

// IsLocked reports whether the key is currently held. The answer may be
// stale as soon as it returns.
func (lm *ResourceLockManager) IsLocked(key LockKey) bool {
	lm.lockMap.Mutex.Lock()
	defer lm.lockMap.Mutex.Unlock()
	_, ok := lm.lockMap.LockMap[key]
	return ok
}

// Locks returns a snapshot of the held locks, ordered by key.
func (lm *ResourceLockManager) Locks() []LockEntry {
	lm.lockMap.Mutex.Lock()
	entries := make([]LockEntry, 0, len(lm.lockMap.LockMap))
	for _, e := range lm.lockMap.LockMap {
		entries = append(entries, e)
	}
	lm.lockMap.Mutex.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.ResourceType != b.ResourceType {
			return a.ResourceType < b.ResourceType
		}
		return a.ResourceID < b.ResourceID
	})
	return entries
}

// Now returns the manager's notion of the current time.
func (lm *ResourceLockManager) Now() time.Time {
	return lm.opts.Clock.Now()
}

// SweepStale removes every entry held longer than maxAge and returns how
// many were reclaimed. A non-positive maxAge uses the configured MaxAge.
// A reclaimed holder's later Release is a harmless no-op.
func (lm *ResourceLockManager) SweepStale(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = lm.opts.MaxAge
	}
	now := lm.opts.Clock.Now()

	lm.lockMap.Mutex.Lock()
	var stale []LockEntry
	for key, e := range lm.lockMap.LockMap {
		if e.Age(now) > maxAge {
			delete(lm.lockMap.LockMap, key)
			stale = append(stale, e)
		}
	}
	lm.lockMap.Mutex.Unlock()

	for _, e := range stale {
		lm.log.Warn().
			Str("resource_type", e.Key.ResourceType).
			Str("resource_id", e.Key.ResourceID).
			Dur("held_for", e.Age(now)).
			Msg("reclaimed stale lock")
	}
	return len(stale)
}

// RunSweeper calls SweepStale every SweepInterval until ctx is done.
// A failing pass is logged and the loop carries on with the next tick.
func (lm *ResourceLockManager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(lm.opts.SweepInterval)
	defer ticker.Stop()

	lm.log.Info().
		Dur("interval", lm.opts.SweepInterval).
		Dur("max_age", lm.opts.MaxAge).
		Msg("stale lock sweeper started")
	for {
		select {
		case <-ctx.Done():
			lm.log.Info().Msg("stale lock sweeper stopped")
			return nil
		case <-ticker.C:
			lm.sweepOnce()
		}
	}
}

func (lm *ResourceLockManager) sweepOnce() {
	defer func() {
		if r := recover(); r != nil {
			lm.log.Error().
				Interface("panic", r).
				Msg("stale lock sweep failed")
		}
	}()
	lm.SweepStale(lm.opts.MaxAge)
}
