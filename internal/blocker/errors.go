package blocker

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("no active block")
	ErrSweepInProgress = errors.New("expiry sweep already in progress")
	ErrInvalidTTL      = errors.New("ttl must not be negative")
)

// NotFoundError is returned by Unblock when the address has no ACTIVE entry.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	IP string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no active block for %s", e.IP)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ResolutionError is returned by BlockDomain when the domain did not resolve
// to any address.
type ResolutionError struct {
	Domain string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Domain, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
