package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aandrewmolt/kpi-dashboard/internal/cache"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

const fileLockRetry = 10 * time.Millisecond

// Record is a single row of a table. Every stored record carries a
// string "id" and the createdAt/updatedAt timestamps.
type Record map[string]interface{}

// ID returns the record's id, or "" if it has none.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Table is a flat JSON file holding an array of records.
//
// Writers are serialized twice: by an in-process mutex, and by an OS
// file lock on "<file>.lock" so that other processes touching the same
// data directory cannot interleave. Readers rely on the atomic rename
// of every write and take no file lock; cached records are keyed by the
// file version, so another process's write is seen on the next Get.
type Table struct {
	name     string
	path     string
	log      zerolog.Logger
	cache    cache.Cache
	lockWait time.Duration
	now      func() time.Time

	mu       sync.Mutex
	fileLock *flock.Flock
}

func newTable(name, dir string, c cache.Cache, lockWait time.Duration, log zerolog.Logger) *Table {
	path := filepath.Join(dir, name+".json")
	return &Table{
		name:     name,
		path:     path,
		log:      log.With().Str("table", name).Logger(),
		cache:    c,
		lockWait: lockWait,
		now:      time.Now,
		fileLock: flock.New(path + ".lock"),
	}
}

// Name returns the collection name of the table.
func (t *Table) Name() string {
	return t.name
}

// List returns every record in file order.
func (t *Table) List(ctx context.Context) ([]Record, error) {
	return t.readAll()
}

// Get returns the record with the given id.
func (t *Table) Get(ctx context.Context, id string) (Record, error) {
	if version := t.fileVersion(); version != "" {
		if b, err := t.cache.Get(t.cacheKey(id, version)); err == nil {
			var rec Record
			if err := json.Unmarshal(b, &rec); err == nil {
				return rec, nil
			}
		}
	}

	// Fill under the table mutex so a stale copy can't land after a
	// write's invalidation.
	t.mu.Lock()
	defer t.mu.Unlock()
	version := t.fileVersion()
	records, err := t.readAll()
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, ErrRecordNotFound
	}
	if b, err := json.Marshal(records[i]); err == nil && version != "" {
		t.cache.Put(t.cacheKey(id, version), b)
	}
	return records[i], nil
}

// Create stores rec under the next free numeric id and returns it.
// Any id supplied by the caller is ignored.
func (t *Table) Create(ctx context.Context, rec Record) (Record, error) {
	if rec == nil {
		return nil, ErrInvalidRecord
	}
	err := t.modify(ctx, "", func(records []Record) ([]Record, error) {
		ts := t.timestamp()
		rec["id"] = nextID(records)
		rec["createdAt"] = ts
		rec["updatedAt"] = ts
		return append(records, rec), nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Info().Str("id", rec.ID()).Msg("record created")
	return rec, nil
}

// Replace overwrites the record with the given id, keeping its id and
// creation time.
func (t *Table) Replace(ctx context.Context, id string, rec Record) (Record, error) {
	if rec == nil {
		return nil, ErrInvalidRecord
	}
	err := t.modify(ctx, id, func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, ErrRecordNotFound
		}
		rec["id"] = id
		rec["createdAt"] = records[i]["createdAt"]
		rec["updatedAt"] = t.timestamp()
		records[i] = rec
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update shallow-merges patch into the record with the given id.
// The id and createdAt fields cannot be patched.
func (t *Table) Update(ctx context.Context, id string, patch Record) (Record, error) {
	if patch == nil {
		return nil, ErrInvalidRecord
	}
	var updated Record
	err := t.modify(ctx, id, func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, ErrRecordNotFound
		}
		for k, v := range patch {
			if k == "id" || k == "createdAt" {
				continue
			}
			records[i][k] = v
		}
		records[i]["updatedAt"] = t.timestamp()
		updated = records[i]
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record with the given id.
func (t *Table) Delete(ctx context.Context, id string) error {
	err := t.modify(ctx, id, func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, ErrRecordNotFound
		}
		return append(records[:i], records[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	t.log.Info().Str("id", id).Msg("record deleted")
	return nil
}

// modify runs a read-modify-write cycle on the table file while holding
// both the table mutex and the file lock, then drops id from the cache.
func (t *Table) modify(ctx context.Context, id string, fn func([]Record) ([]Record, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, t.lockWait)
	defer cancel()
	ok, err := t.fileLock.TryLockContext(lockCtx, fileLockRetry)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("lock %s: %w", t.fileLock.Path(), err)
	}
	if !ok {
		t.log.Warn().Dur("waited", t.lockWait).Msg("table file lock not obtained")
		return ErrTableLocked
	}
	defer func() {
		if err := t.fileLock.Unlock(); err != nil {
			t.log.Error().Err(err).Msg("unlocking table file")
		}
	}()

	version := t.fileVersion()
	records, err := t.readAll()
	if err != nil {
		return err
	}
	records, err = fn(records)
	if err != nil {
		return err
	}
	if err := t.writeAll(records); err != nil {
		return err
	}
	if id != "" && version != "" {
		t.cache.Remove(t.cacheKey(id, version))
	}
	return nil
}

func (t *Table) readAll() ([]Record, error) {
	b, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	var records []Record
	if len(b) == 0 {
		return []Record{}, nil
	}
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.path, err)
	}
	return records, nil
}

// writeAll writes to a temp file in the same directory and renames it
// over the table so readers never observe a partial file.
func (t *Table) writeAll(records []Record) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), t.name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("rename into %s: %w", t.path, err)
	}
	return nil
}

// cacheKey ties a cached record to the file version it was read from,
// so writes from other processes make older entries unreachable.
func (t *Table) cacheKey(id, version string) string {
	return t.name + ":" + id + "@" + version
}

// fileVersion identifies the current table file. Every write renames a
// fresh file into place, which changes its modification time. "" means
// the file does not exist (or can't be read) and nothing is cached.
func (t *Table) fileVersion() string {
	fi, err := os.Stat(t.path)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 36) + "." + strconv.FormatInt(fi.Size(), 36)
}

func (t *Table) timestamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}

func indexOf(records []Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// nextID returns one more than the largest numeric id in records.
func nextID(records []Record) string {
	max := 0
	for _, r := range records {
		if n, err := strconv.Atoi(r.ID()); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}
