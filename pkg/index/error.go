package index

import "errors"

var (
	// ErrDimension is returned when an entry's embedding length disagrees
	// with the index's configured dimensionality.
	ErrDimension = errors.New("index: embedding dimension mismatch")

	// ErrClosed is returned when an operation hits a closed index.
	ErrClosed = errors.New("index: closed")
)
