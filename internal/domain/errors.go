package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is the parent of every validation failure.
	// It is raised before storage is touched and is never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDestination reports a malformed or non-http(s) destination.
	ErrInvalidDestination = fmt.Errorf("%w: destination", ErrInvalidInput)

	// ErrInvalidCode reports a custom code outside the length/alphabet contract.
	ErrInvalidCode = fmt.Errorf("%w: code", ErrInvalidInput)

	// ErrCodeConflict means the code is taken, reserved, or lost a race at the
	// storage uniqueness constraint.
	ErrCodeConflict = errors.New("code already taken")

	// ErrGenerationExhausted means every attempt at every allowed length
	// collided. It signals keyspace pressure.
	ErrGenerationExhausted = errors.New("short code generation exhausted")

	// ErrNotFound means no link with that code exists.
	ErrNotFound = errors.New("link not found")

	// ErrStorageUnavailable wraps every storage failure that is not a
	// conflict or a missing row, including timeouts.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrRateLimited is matched by *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitedError carries the retry-after guidance for a rejected creation.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Unavailable wraps err as a storage failure, keeping the cause in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
