package shortener

import (
	"errors"

	"github.com/ericfialkowski/urlshort/dao"
)

// Request errors. Anything a Service returns that is not one of these is a backend fault.
var (
	ErrAccessDenied        = errors.New("access denied, token is missing")
	ErrMissingField        = errors.New("url is missing")
	ErrInvalidIdentifier   = errors.New("accepted characters for id are: [0-9a-zA-Z_-]")
	ErrIdentifierConflict  = errors.New("given id already exists")
	ErrAllocationExhausted = dao.ErrAllocationExhausted
	ErrNotFound            = errors.New("url with given id does not exist")
)

var clientErrors = []error{
	ErrAccessDenied,
	ErrMissingField,
	ErrInvalidIdentifier,
	ErrIdentifierConflict,
	ErrAllocationExhausted,
	ErrNotFound,
}

// IsBackendFault reports whether err came from storage rather than from the request.
func IsBackendFault(err error) bool {
	if err == nil {
		return false
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			return false
		}
	}
	return true
}
