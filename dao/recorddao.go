package dao

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("record already exists")
	// ErrCacheFull is returned by the memory store once its key limit is reached.
	ErrCacheFull = errors.New("cache is full")
)

// RecordDao is the storage contract shared by every backend. Implementations must be safe
// for concurrent use. Existence is decided by presence of the key, never by the stored value.
type RecordDao interface {
	IsLikelyOk() bool
	// Get returns ErrNotFound when the id is absent.
	Get(ctx context.Context, id string) (Record, error)
	// Set writes the record unconditionally. Requests never call it; it completes the
	// get/set storage contract and seeds records in tests and tooling.
	Set(ctx context.Context, id string, rec Record) error
	// Create writes the record only if the id is absent, otherwise ErrExists.
	Create(ctx context.Context, id string, rec Record) error
	// IncrementVisits adds one visit as a single atomic operation and returns the updated record.
	IncrementVisits(ctx context.Context, id string) (Record, error)
	Cleanup()
}

// Exists reports whether a record is stored under id.
func Exists(ctx context.Context, d RecordDao, id string) (bool, error) {
	_, err := d.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
