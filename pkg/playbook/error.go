package playbook

import "errors"

var (
	// ErrProviderUnavailable is returned when the embedding provider fails
	// or times out. The enclosing delta submission aborts atomically and
	// the caller may retry.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrUnknownBullet is reported per-edit when an edit references a
	// bullet id that does not exist. It never aborts the delta.
	ErrUnknownBullet = errors.New("unknown bullet id")

	// ErrDimensionMismatch is returned when an embedding's length disagrees
	// with the configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfiguration is returned at startup for out-of-range
	// thresholds or weights. It is never raised at call time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrStoreUnavailable is returned on persistent-store I/O failure.
	// The core never retries; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
