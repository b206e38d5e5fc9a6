package storage

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/codibre/tree-key-cache-storage/backend"
)

var _ Storage[[]byte] = (*Simple[[]byte])(nil)

// Simple stores every key as is in a single data backend, with an optional
// children registry kept in a separate backend.
type Simple[V Value] struct {
	base
	data backend.Backend
}

// NewSimple creates a Simple storage. children may be nil when the children
// registry is disabled.
func NewSimple[V Value](data, children backend.Backend, opts Options) (*Simple[V], error) {
	if data == nil {
		return nil, errors.New("a data backend is required")
	}
	b, err := newBase(children, opts)
	if err != nil {
		return nil, err
	}
	return &Simple[V]{base: b, data: data}, nil
}

func (s *Simple[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return read[V](ctx, s.data, key)
}

func (s *Simple[V]) Set(ctx context.Context, key string, value V) error {
	return s.set(ctx, key, value, nil)
}

func (s *Simple[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error {
	return s.set(ctx, key, value, &ttl)
}

func (s *Simple[V]) set(ctx context.Context, key string, value V, ttl *time.Duration) error {
	resolved, err := s.resolveTTL(ttl)
	if err != nil {
		return err
	}
	return write(ctx, s.data, key, []byte(value), resolved)
}

func (s *Simple[V]) GetCurrentTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return currentTTL(ctx, s.data, key)
}

// GetChildren keys the registry set by the parent key itself.
func (s *Simple[V]) GetChildren(ctx context.Context, parentKey string) (iter.Seq2[string, error], error) {
	return s.childrenOf(ctx, parentKey)
}

func (s *Simple[V]) RegisterChild(ctx context.Context, parentKey, partialKey string) error {
	return s.registerChild(ctx, parentKey, partialKey)
}

func (s *Simple[V]) RandomIterate(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return scanKeys(ctx, s.data, pattern)
}

// GetHistory always fails: a Simple storage overwrites values in place.
func (s *Simple[V]) GetHistory(context.Context, string) (iter.Seq2[V, error], error) {
	return nil, ErrUnsupported
}
