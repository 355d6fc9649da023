package azdo

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the requested entity or file does not exist.
// Callers treat it as "this edge does not exist", never as a run failure.
var ErrNotFound = errors.New("not found")

// AccessError is a fatal authentication or authorization failure (401/403).
// It aborts the entire scan.
type AccessError struct {
	Status int
	URL    string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access denied (HTTP %d): %s", e.Status, e.URL)
}

// TransientError is a retryable failure: rate limiting, server errors,
// timeouts, or network-level problems. The client retries these with
// backoff; once the budget is exhausted the caller degrades the edge
// to unresolved.
type TransientError struct {
	Status int
	URL    string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient error: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transient error (HTTP %d): %s", e.Status, e.URL)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsFatal reports whether err should abort the whole scan.
func IsFatal(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// IsTransient reports whether err was a retryable failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
