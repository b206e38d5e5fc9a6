package storage

import "errors"

var (
	// ErrUnsupported is returned when a storage is asked for a capability
	// its strategy or configuration doesn't provide.
	ErrUnsupported = errors.New("operation not supported by this storage")

	// ErrInvalidConfig is returned for contradictory or out of range
	// construction options.
	ErrInvalidConfig = errors.New("invalid storage configuration")

	// ErrInvalidShard is returned when no shard can be resolved from the
	// pool, e.g., because the pool is empty.
	ErrInvalidShard = errors.New("invalid shard index")
)
