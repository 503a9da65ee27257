package store

import (
	"fmt"
	"os"
	"time"

	"github.com/aandrewmolt/kpi-dashboard/internal/cache"
	"github.com/rs/zerolog"
)

// Resource pairs a lockable resource type with the collection (table)
// that stores it.
type Resource struct {
	Type       string
	Collection string
}

// Resources are the tables of the dashboard.
var Resources = []Resource{
	{Type: "job", Collection: "jobs"},
	{Type: "pad", Collection: "pads"},
	{Type: "incident", Collection: "incidents"},
	{Type: "operator", Collection: "operators"},
}

// Options tunes a Store.
type Options struct {
	// CacheSize is the number of records kept in the read cache.
	CacheSize int
	// FileLockWait bounds how long a write waits for the table file lock.
	FileLockWait time.Duration
}

// Store owns the JSON tables in a data directory.
type Store struct {
	dir    string
	tables map[string]*Table
}

// Open creates dir if needed and returns a store with one table per resource.
func Open(dir string, opts Options, log zerolog.Logger) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.FileLockWait <= 0 {
		opts.FileLockWait = 2 * time.Second
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	c, err := cache.NewLRUCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		tables: make(map[string]*Table, len(Resources)),
	}
	for _, r := range Resources {
		s.tables[r.Collection] = newTable(r.Collection, dir, c, opts.FileLockWait, log)
	}
	log.Info().Str("dir", dir).Int("tables", len(s.tables)).Msg("store opened")
	return s, nil
}

// Table returns the table for the given collection.
func (s *Store) Table(collection string) (*Table, error) {
	t, ok := s.tables[collection]
	if !ok {
		return nil, fmt.Errorf("%s: %w", collection, ErrUnknownTable)
	}
	return t, nil
}
