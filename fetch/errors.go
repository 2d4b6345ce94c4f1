package fetch

import "errors"

var (
	// ErrFetchTimeout reports that every retry or poll was used up.
	ErrFetchTimeout = errors.New("fetch timeout")
	// ErrFetchRejected reports a non-retryable HTTP status.
	ErrFetchRejected = errors.New("fetch rejected")
)
