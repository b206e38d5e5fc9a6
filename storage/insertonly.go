package storage

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/keycodec"
)

var _ Storage[[]byte] = (*InsertOnly[[]byte])(nil)

// InsertOnly never overwrites a value. Each Set allocates the next version of
// the key from a counter kept at the escaped key and stores the value under
// the versioned literal key. Values are only readable through GetHistory.
type InsertOnly[V Value] struct {
	*Simple[V]
}

// NewInsertOnly creates an InsertOnly storage. children may be nil when the
// children registry is disabled.
func NewInsertOnly[V Value](data, children backend.Backend, opts Options) (*InsertOnly[V], error) {
	s, err := NewSimple[V](data, children, opts)
	if err != nil {
		return nil, err
	}
	return &InsertOnly[V]{Simple: s}, nil
}

// Get always reports absence. Use GetHistory.
func (s *InsertOnly[V]) Get(context.Context, string) (V, bool, error) {
	var zero V
	return zero, false, nil
}

func (s *InsertOnly[V]) Set(ctx context.Context, key string, value V) error {
	return s.set(ctx, key, value, nil)
}

func (s *InsertOnly[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error {
	return s.set(ctx, key, value, &ttl)
}

func (s *InsertOnly[V]) set(ctx context.Context, key string, value V, explicit *time.Duration) error {
	ttl, err := s.resolveTTL(explicit)
	if err != nil {
		return err
	}
	counter := keycodec.Escape(key)
	version, err := s.nextVersion(ctx, counter)
	if err != nil {
		return err
	}

	if err := write(ctx, s.data, keycodec.AppendVersion(counter, uint64(version)), []byte(value), ttl); err != nil {
		return err
	}
	return s.keepCounter(ctx, counter, version, ttl)
}

// keepCounter makes the counter live at least as long as the version just
// written under it. The counter must never expire before a stored version,
// or the sequence would restart and overwrite it.
func (s *InsertOnly[V]) keepCounter(ctx context.Context, counter string, version int64, ttl time.Duration) error {
	if ttl == 0 {
		return s.data.Persist(ctx, counter)
	}
	// INCR just created the counter with no expiry
	if version == 1 {
		return s.data.Expire(ctx, counter, ttl)
	}
	current, err := s.data.TTL(ctx, counter)
	if err != nil {
		return err
	}
	if current == backend.NoExpiry || current >= ttl {
		return nil
	}
	return s.data.Expire(ctx, counter, ttl)
}

// nextVersion atomically advances the counter. A counter holding something
// other than an integer is dropped and the sequence restarts at 1.
func (s *InsertOnly[V]) nextVersion(ctx context.Context, counter string) (int64, error) {
	v, err := s.data.Incr(ctx, counter)
	if !errors.Is(err, backend.ErrNotInteger) {
		return v, err
	}

	log.Warn().Str("counter", counter).Msg("version counter is corrupted, restarting it")
	if err := s.data.Del(ctx, counter); err != nil {
		return 0, err
	}
	return s.data.Incr(ctx, counter)
}

// GetCurrentTTL reports the TTL of the key's version counter.
func (s *InsertOnly[V]) GetCurrentTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return currentTTL(ctx, s.data, keycodec.Escape(key))
}

// GetHistory yields the key's versions newest first, stopping at the first
// version that is gone.
func (s *InsertOnly[V]) GetHistory(ctx context.Context, key string) (iter.Seq2[V, error], error) {
	counter := keycodec.Escape(key)
	return func(yield func(V, error) bool) {
		var zero V
		latest, err := s.latestVersion(ctx, counter)
		if err != nil {
			yield(zero, err)
			return
		}
		for v := latest; v > 0; v-- {
			value, found, err := read[V](ctx, s.data, keycodec.AppendVersion(counter, v))
			if err != nil {
				yield(zero, err)
				return
			}
			if !found || !yield(value, nil) {
				return
			}
		}
	}, nil
}

func (s *InsertOnly[V]) latestVersion(ctx context.Context, counter string) (uint64, error) {
	raw, found, err := s.data.Get(ctx, counter)
	if err != nil || !found {
		return 0, err
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		log.Warn().Str("counter", counter).Msg("version counter is corrupted, no history to read")
		return 0, nil
	}
	return v, nil
}

// RandomIterate yields the logical names of the stored keys, leaving out
// every versioned entry.
func (s *InsertOnly[V]) RandomIterate(ctx context.Context, pattern string) iter.Seq2[string, error] {
	if pattern != "" {
		pattern = keycodec.EscapePattern(pattern)
	}
	return baseKeys(scanKeys(ctx, s.data, pattern))
}
