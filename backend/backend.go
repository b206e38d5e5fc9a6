package backend

import (
	"context"
	"errors"
	"time"
)

// TTL sentinels, as reported by the Redis TTL command.
const (
	// NoExpiry is returned by TTL when the key exists without an expiry.
	NoExpiry time.Duration = -1
	// Missing is returned by TTL when the key doesn't exist.
	Missing time.Duration = -2
)

// ErrNotInteger is returned by Incr when the stored value can't be parsed
// as an integer.
var ErrNotInteger = errors.New("value is not an integer or out of range")

// Backend is one logical database of a key/value system. Every call is a
// single round trip with no retries; transport errors are returned as is.
//
// Implementations need to include connection logic in code to initialize
// a Backend, and must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored at key. found is false when the key is
	// absent, which is not an error.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value at key with no expiry, clearing any previous one.
	Set(ctx context.Context, key string, value []byte) error
	// SetWithTTL stores value at key, expiring after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TTL returns the remaining time to live of key, or one of the
	// NoExpiry and Missing sentinels.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Incr atomically increments the integer stored at key, treating an
	// absent key as 0, and returns the new value. The key's expiry is kept.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the time to live of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Persist removes the expiry of an existing key.
	Persist(ctx context.Context, key string) error
	// Del removes key. Missing keys are ignored.
	Del(ctx context.Context, key string) error
	// SAdd adds member to the set stored at setKey.
	SAdd(ctx context.Context, setKey, member string) error
	// SScan returns one page of the members of setKey. A zero next cursor
	// marks the last page.
	SScan(ctx context.Context, setKey string, cursor uint64, count int64) (members []string, next uint64, err error)
	// Scan returns one page of the keys in the database, filtered by the
	// glob match when it isn't empty. A zero next cursor marks the last page.
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)
	// FlushDB removes every key of the database.
	FlushDB(ctx context.Context) error
	// Close releases the connection.
	Close() error
}
