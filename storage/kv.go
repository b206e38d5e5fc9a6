package storage

import (
	"context"
	"iter"
	"time"
)

// Value is the type of the values a storage hands back: raw bytes (buffer
// mode) or text. It's fixed per storage instance.
type Value interface {
	~string | ~[]byte
}

// Storage exposes the operations the tree cache performs on its persistence
// layer. Absent values are reported through found=false, never as an error.
type Storage[V Value] interface {
	// Return the value stored at key
	Get(ctx context.Context, key string) (value V, found bool, err error)
	// Store value at key, expiring after the storage's default TTL if there
	// is one
	Set(ctx context.Context, key string, value V) error
	// Store value at key with an explicit TTL, overriding the default. A
	// zero ttl stores the value with no expiry; a negative one fails with
	// ErrInvalidConfig.
	SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error
	// Return the remaining time to live of key. found is false when the key
	// doesn't exist or has no expiry.
	GetCurrentTTL(ctx context.Context, key string) (ttl time.Duration, found bool, err error)
	// List the partial keys registered under parentKey ("" for the root).
	// Fails with ErrUnsupported when the children registry is disabled.
	GetChildren(ctx context.Context, parentKey string) (iter.Seq2[string, error], error)
	// Register partialKey as a child of parentKey ("" for the root). This is
	// a no-op when the children registry is disabled.
	RegisterChild(ctx context.Context, parentKey, partialKey string) error
	// Flush the entire children registry database
	ClearAllChildrenRegistry(ctx context.Context) error
	// Iterate over the stored keys, filtered by a glob pattern when it
	// isn't empty
	RandomIterate(ctx context.Context, pattern string) iter.Seq2[string, error]
	// Iterate over the values stored for key, newest first. Fails with
	// ErrUnsupported on strategies that keep no history.
	GetHistory(ctx context.Context, key string) (iter.Seq2[V, error], error)
}
