package dao

import (
	"context"
	"sync"

	"github.com/patrickmn/go-cache"
)

// MemoryDB keeps records in an in-process cache. Reads go straight to the cache, writes are
// serialized so the key limit and the visit increment stay consistent.
type MemoryDB struct {
	cache   *cache.Cache
	maxKeys int
	mu      sync.Mutex
}

// CreateMemoryDB returns an in-memory RecordDao. maxKeys <= 0 means unlimited.
func CreateMemoryDB(maxKeys int) RecordDao {
	return &MemoryDB{
		cache:   cache.New(cache.NoExpiration, 0),
		maxKeys: maxKeys,
	}
}

func (d *MemoryDB) IsLikelyOk() bool {
	return true
}

func (d *MemoryDB) Get(_ context.Context, id string) (Record, error) {
	v, found := d.cache.Get(id)
	if !found {
		return Record{}, ErrNotFound
	}
	rec := v.(Record)
	rec.Id = id
	return rec, nil
}

func (d *MemoryDB) Set(_ context.Context, id string, rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, found := d.cache.Get(id); !found && d.full() {
		return ErrCacheFull
	}
	rec.Id = id
	d.cache.Set(id, rec, cache.NoExpiration)
	return nil
}

func (d *MemoryDB) Create(_ context.Context, id string, rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, found := d.cache.Get(id); found {
		return ErrExists
	}
	if d.full() {
		return ErrCacheFull
	}
	rec.Id = id
	if err := d.cache.Add(id, rec, cache.NoExpiration); err != nil {
		return ErrExists
	}
	return nil
}

func (d *MemoryDB) IncrementVisits(_ context.Context, id string) (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, found := d.cache.Get(id)
	if !found {
		return Record{}, ErrNotFound
	}
	rec := v.(Record)
	rec.Id = id
	rec.Visits++
	d.cache.Set(id, rec, cache.NoExpiration)
	return rec, nil
}

func (d *MemoryDB) full() bool {
	return d.maxKeys > 0 && d.cache.ItemCount() >= d.maxKeys
}

func (d *MemoryDB) Cleanup() {
	d.cache.Flush()
}
