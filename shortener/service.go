package shortener

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ericfialkowski/urlshort/dao"
)

// StatsMarker at the end of a path asks for stats instead of a redirect.
const StatsMarker = "+"

var validId = regexp.MustCompile(`^[0-9a-zA-Z_-]+$`)

type Service struct {
	dao         dao.RecordDao
	token       string
	abbreviator *dao.Abbreviator
}

// Result is what a retrieval produced: a record to redirect to, or to report stats for.
type Result struct {
	Record dao.Record
	Stats  bool
}

func NewService(d dao.RecordDao, token string, idLength int) *Service {
	return &Service{
		dao:         d,
		token:       token,
		abbreviator: dao.NewAbbreviator(idLength),
	}
}

// ValidId reports whether id only uses the allowed characters and fits every backend.
func ValidId(id string) bool {
	return len(id) <= dao.MaxIdLength && validId.MatchString(id)
}

// Submit stores url under id, or under a generated id when id is empty. Nothing is written
// unless every check passes, and an existing id is never overwritten.
func (s *Service) Submit(ctx context.Context, token, url, id string) (dao.Record, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return dao.Record{}, ErrAccessDenied
	}
	if url == "" {
		return dao.Record{}, ErrMissingField
	}

	if id != "" {
		if !ValidId(id) {
			return dao.Record{}, ErrInvalidIdentifier
		}
		exists, err := dao.Exists(ctx, s.dao, id)
		if err != nil {
			return dao.Record{}, err
		}
		if exists {
			return dao.Record{}, ErrIdentifierConflict
		}
		return s.create(ctx, id, url)
	}

	id, err := s.abbreviator.CreateAbbreviation(ctx, s.dao)
	if err != nil {
		return dao.Record{}, err
	}
	return s.create(ctx, id, url)
}

func (s *Service) create(ctx context.Context, id, url string) (dao.Record, error) {
	rec := dao.NewRecord(id, url)
	if err := s.dao.Create(ctx, id, rec); err != nil {
		// lost a race with another submission for the same id
		if errors.Is(err, dao.ErrExists) {
			return dao.Record{}, ErrIdentifierConflict
		}
		return dao.Record{}, fmt.Errorf("couldn't save %s: %w", id, err)
	}
	return rec, nil
}

// ParsePath strips one leading "/" and an optional trailing StatsMarker from rawPath.
func ParsePath(rawPath string) (id string, stats bool) {
	id = strings.TrimPrefix(rawPath, "/")
	if strings.HasSuffix(id, StatsMarker) {
		return strings.TrimSuffix(id, StatsMarker), true
	}
	return id, false
}

// Retrieve resolves rawPath. Stats lookups never touch the visit counter; redirects count
// one visit atomically.
func (s *Service) Retrieve(ctx context.Context, rawPath string) (Result, error) {
	id, stats := ParsePath(rawPath)
	if id == "" {
		return Result{}, ErrNotFound
	}

	if stats {
		rec, err := s.dao.Get(ctx, id)
		if err != nil {
			return Result{}, s.lookupError(id, err)
		}
		return Result{Record: rec, Stats: true}, nil
	}

	rec, err := s.dao.IncrementVisits(ctx, id)
	if err != nil {
		return Result{}, s.lookupError(id, err)
	}
	return Result{Record: rec}, nil
}

func (s *Service) lookupError(id string, err error) error {
	if errors.Is(err, dao.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("couldn't look up %s: %w", id, err)
}
