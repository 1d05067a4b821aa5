package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfialkowski/urlshort/rando"
)

// MaxAllocationAttempts bounds how many random ids are tried before giving up.
const MaxAllocationAttempts = 5

// ErrAllocationExhausted means every attempt hit an id that is already stored; the id
// space is too small or too full for the configured length.
var ErrAllocationExhausted = errors.New("id generation exhausted")

// IdGenerator returns a random id of the given length.
type IdGenerator func(length int) (string, error)

type Abbreviator struct {
	Length   int
	Generate IdGenerator
}

func NewAbbreviator(length int) *Abbreviator {
	return &Abbreviator{Length: length, Generate: rando.RandStrn}
}

// CreateAbbreviation returns an id that is not stored in d at the time of the check.
// Nothing is written; the caller persists the record.
func (a *Abbreviator) CreateAbbreviation(ctx context.Context, d RecordDao) (string, error) {
	for range MaxAllocationAttempts {
		abv, err := a.Generate(a.Length)
		if err != nil {
			return "", fmt.Errorf("error generating id: %w", err)
		}

		exists, err := Exists(ctx, d, abv)
		if err != nil {
			return "", fmt.Errorf("error checking id %s: %w", abv, err)
		}
		if !exists {
			return abv, nil
		}
	}
	return "", ErrAllocationExhausted
}
