package storage

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	units "github.com/docker/go-units"
	"github.com/rs/zerolog/log"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/keycodec"
)

var _ Storage[[]byte] = (*TimedRoundRobin[[]byte])(nil)

// TimedRoundRobin spreads writes over a pool of backends, one active per
// rotation window. When the pool wraps around, a shard's old values are
// overwritten, so each shard holds the values written during its latest
// window.
type TimedRoundRobin[V Value] struct {
	base
	pool []backend.Backend
	opts TimedOptions
}

// NewTimedRoundRobin creates a TimedRoundRobin storage over pool. children
// may be nil when the children registry is disabled.
func NewTimedRoundRobin[V Value](pool []backend.Backend, children backend.Backend, opts TimedOptions) (*TimedRoundRobin[V], error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: the shard pool is empty", ErrInvalidShard)
	}
	for i, be := range pool {
		if be == nil {
			return nil, fmt.Errorf("%w: shard %d has no backend", ErrInvalidShard, i)
		}
	}
	o, err := opts.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}
	b, err := newBase(children, o.Options)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("shards", len(pool)).
		Str("window", units.HumanDuration(o.window())).
		Time("base", o.BaseTimestamp).
		Msg("round robin storage ready")

	return &TimedRoundRobin[V]{
		base: b,
		pool: append([]backend.Backend{}, pool...),
		opts: o,
	}, nil
}

// ActiveIndex returns the index of the shard in use right now.
func (s *TimedRoundRobin[V]) ActiveIndex() int {
	return ActiveIndex(s.opts.Now(), s.opts.BaseTimestamp, s.opts.window(), len(s.pool))
}

func (s *TimedRoundRobin[V]) shard() (int, backend.Backend, error) {
	i := s.ActiveIndex()
	if i < 0 || i >= len(s.pool) {
		return 0, nil, fmt.Errorf("%w: %d for a pool of %d", ErrInvalidShard, i, len(s.pool))
	}
	return i, s.pool[i], nil
}

func (s *TimedRoundRobin[V]) Get(ctx context.Context, key string) (V, bool, error) {
	_, be, err := s.shard()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return read[V](ctx, be, key)
}

func (s *TimedRoundRobin[V]) Set(ctx context.Context, key string, value V) error {
	return s.set(ctx, key, value, nil)
}

func (s *TimedRoundRobin[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error {
	return s.set(ctx, key, value, &ttl)
}

func (s *TimedRoundRobin[V]) set(ctx context.Context, key string, value V, ttl *time.Duration) error {
	resolved, err := s.resolveTTL(ttl)
	if err != nil {
		return err
	}
	_, be, err := s.shard()
	if err != nil {
		return err
	}
	return write(ctx, be, key, []byte(value), resolved)
}

func (s *TimedRoundRobin[V]) GetCurrentTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	_, be, err := s.shard()
	if err != nil {
		return 0, false, err
	}
	return currentTTL(ctx, be, key)
}

// childrenKey namespaces a parent's registry set by shard.
func childrenKey(shard int, parentKey string) string {
	return strconv.Itoa(shard) + string(keycodec.HierarchySeparator) + keycodec.Escape(parentKey)
}

func (s *TimedRoundRobin[V]) GetChildren(ctx context.Context, parentKey string) (iter.Seq2[string, error], error) {
	i, _, err := s.shard()
	if err != nil {
		return nil, err
	}
	return s.childrenOf(ctx, childrenKey(i, parentKey))
}

func (s *TimedRoundRobin[V]) RegisterChild(ctx context.Context, parentKey, partialKey string) error {
	i, _, err := s.shard()
	if err != nil {
		return err
	}
	return s.registerChild(ctx, childrenKey(i, parentKey), partialKey)
}

// GetHistory yields the key's value in the active shard, then in each older
// shard, skipping shards that don't hold it.
func (s *TimedRoundRobin[V]) GetHistory(ctx context.Context, key string) (iter.Seq2[V, error], error) {
	n := len(s.pool)
	if n < 2 {
		return nil, ErrUnsupported
	}
	active, _, err := s.shard()
	if err != nil {
		return nil, err
	}
	return func(yield func(V, error) bool) {
		for step := 0; step < n; step++ {
			be := s.pool[((active-step)%n+n)%n]
			value, found, err := read[V](ctx, be, key)
			if err != nil {
				var zero V
				yield(zero, err)
				return
			}
			if found && !yield(value, nil) {
				return
			}
		}
	}, nil
}

func (s *TimedRoundRobin[V]) RandomIterate(ctx context.Context, pattern string) iter.Seq2[string, error] {
	_, be, err := s.shard()
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	}
	if !s.opts.BaseKeysOnly {
		return scanKeys(ctx, be, pattern)
	}
	if pattern != "" {
		pattern = keycodec.EscapePattern(pattern)
	}
	return baseKeys(scanKeys(ctx, be, pattern))
}
