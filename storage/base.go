package storage

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/cursor"
	"github.com/codibre/tree-key-cache-storage/keycodec"
)

// base holds what every strategy shares: the options and the children
// registry backend.
type base struct {
	opts     Options
	children backend.Backend
}

func newBase(children backend.Backend, opts Options) (base, error) {
	o, err := opts.CheckAndSetDefaults()
	if err != nil {
		return base{}, err
	}
	if o.ChildrenRegistry && children == nil {
		return base{}, fmt.Errorf("%w: the children registry needs a children backend", ErrInvalidConfig)
	}
	return base{opts: o, children: children}, nil
}

// resolveTTL picks the explicit TTL when there is one, else the default.
func (b *base) resolveTTL(explicit *time.Duration) (time.Duration, error) {
	if explicit == nil {
		return b.opts.DefaultTTL, nil
	}
	if *explicit < 0 {
		return 0, fmt.Errorf("%w: the TTL can't be negative, got %v", ErrInvalidConfig, *explicit)
	}
	return *explicit, nil
}

// ClearAllChildrenRegistry flushes the children backend.
func (b *base) ClearAllChildrenRegistry(ctx context.Context) error {
	if b.children == nil {
		return ErrUnsupported
	}
	return b.children.FlushDB(ctx)
}

func (b *base) registerChild(ctx context.Context, setKey, partialKey string) error {
	if !b.opts.ChildrenRegistry {
		return nil
	}
	return b.children.SAdd(ctx, setKey, partialKey)
}

func (b *base) childrenOf(ctx context.Context, setKey string) (iter.Seq2[string, error], error) {
	if !b.opts.ChildrenRegistry {
		return nil, ErrUnsupported
	}
	return cursor.Depaginate(func(c uint64) ([]string, uint64, error) {
		return b.children.SScan(ctx, setKey, c, cursor.PageSize)
	}), nil
}

// write stores value with a positive ttl, or with no expiry otherwise.
func write(ctx context.Context, be backend.Backend, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		return be.SetWithTTL(ctx, key, value, ttl)
	}
	return be.Set(ctx, key, value)
}

func read[V Value](ctx context.Context, be backend.Backend, key string) (V, bool, error) {
	var zero V
	raw, found, err := be.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}
	return V(raw), true, nil
}

// currentTTL hides the backend's negative sentinels behind found=false.
func currentTTL(ctx context.Context, be backend.Backend, key string) (time.Duration, bool, error) {
	ttl, err := be.TTL(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

func scanKeys(ctx context.Context, be backend.Backend, pattern string) iter.Seq2[string, error] {
	return cursor.Depaginate(func(c uint64) ([]string, uint64, error) {
		return be.Scan(ctx, c, pattern, cursor.PageSize)
	})
}

// baseKeys drops versioned keys from seq and unescapes the rest.
func baseKeys(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for key, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if !keycodec.IsBaseKey(key) {
				continue
			}
			name, err := keycodec.Unescape(key)
			if err != nil {
				log.Debug().Str("key", key).Err(err).Msg("skipping a key this storage didn't write")
				continue
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}
