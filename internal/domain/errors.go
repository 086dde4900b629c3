package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrUnreachable indicates the catalogue service could not be reached
	ErrUnreachable = errors.New("catalogue service is unreachable")

	// ErrAuthFailed indicates the API key was rejected
	ErrAuthFailed = errors.New("api key is invalid")

	// ErrNotFound indicates the requested movie does not exist
	ErrNotFound = errors.New("movie not found")

	// ErrInvalidPage indicates a page number outside the catalogue's range
	ErrInvalidPage = errors.New("invalid page number")

	// ErrCacheMiss indicates the requested entry is not cached
	ErrCacheMiss = errors.New("cache miss")
)

// ServiceError is a non-success response from the catalogue service
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalogue service error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalogue service error (status %d): %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// FailureKind classifies why a paging load failed
type FailureKind int

const (
	// FailureTransport: no connectivity or timeout reaching the fetcher
	FailureTransport FailureKind = iota
	// FailureService: the fetcher was reached but returned a non-success result
	FailureService
	// FailureStorage: the transaction could not commit
	FailureStorage
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureService:
		return "service"
	case FailureStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// LoadError is the cause carried by a failed paging load
type LoadError struct {
	Kind     FailureKind
	Category string
	LoadType LoadType
	Page     int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s load of %q page %d failed (%s): %v", e.LoadType, e.Category, e.Page, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ClassifyFetchError maps a fetcher error to a failure kind.
// Anything that is not a service response counts as a transport failure.
func ClassifyFetchError(err error) FailureKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPage) {
		return FailureService
	}
	return FailureTransport
}
