package userconfig

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/storage"
)

// Handle is an open storage together with the connections backing it.
type Handle[V storage.Value] struct {
	Storage storage.Storage[V]
	Meta    Meta

	backends []backend.Backend
	badger   *backend.BadgerDB
}

// Build validates m and opens the storage it describes. It is up to the
// caller to close the handle with Close().
func Build[V storage.Value](m *Meta) (*Handle[V], error) {
	c, err := m.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}
	h := &Handle[V]{Meta: c}

	var dial func(e backend.Endpoint) []backend.Backend
	switch c.Backend {
	case BackendBadger:
		h.badger, err = backend.NewBadgerDB(&backend.BadgerConfig{
			StorageDirPath:   c.Badger.Dir,
			InMemory:         c.Badger.InMemory,
			ValueLogFileSize: c.Badger.ValueLogFileSize,
		})
		if err != nil {
			return nil, err
		}
		dial = func(e backend.Endpoint) []backend.Backend {
			var bs []backend.Backend
			for _, db := range e.DBs {
				bs = append(bs, h.badger.Namespace(db))
			}
			return bs
		}
	default:
		dial = func(e backend.Endpoint) []backend.Backend {
			return backend.DialPool([]backend.Endpoint{e})
		}
	}

	children := dial(backend.Endpoint{Host: c.Host, Port: c.Port, DBs: []int{*c.ChildrenDB}})[0]
	h.backends = append(h.backends, children)
	opts := storage.Options{
		ChildrenRegistry: c.ChildrenRegistry,
		DefaultTTL:       c.DefaultTTL,
	}

	switch c.Mode {
	case ModeRoundRobin:
		var pool []backend.Backend
		for _, e := range c.Endpoints() {
			pool = append(pool, dial(e)...)
		}
		h.backends = append(h.backends, pool...)
		h.Storage, err = storage.NewTimedRoundRobin[V](pool, children, storage.TimedOptions{
			Options:       opts,
			BaseTimestamp: c.BaseTimestamp,
			DayScale:      c.DayScale,
			BaseKeysOnly:  c.BaseKeysOnly,
		})
	default:
		data := dial(backend.Endpoint{Host: c.Host, Port: c.Port, DBs: []int{*c.TreeDB}})[0]
		h.backends = append(h.backends, data)
		if c.Mode == ModeInsertOnly {
			h.Storage, err = storage.NewInsertOnly[V](data, children, opts)
		} else {
			h.Storage, err = storage.NewSimple[V](data, children, opts)
		}
	}
	if err != nil {
		h.Close()
		return nil, err
	}

	log.Debug().
		Str("backend", c.Backend).
		Str("mode", c.Mode).
		Bool("bufferMode", c.BufferMode).
		Int("connections", len(h.backends)).
		Msg("opened the storage")
	return h, nil
}

// Cleanup runs the embedded backend's garbage collection. Redis expires
// keys on its own, so there is nothing to do for it.
func (h *Handle[V]) Cleanup() error {
	if h.badger == nil {
		return nil
	}
	return h.badger.Cleanup()
}

// Close releases every connection of the handle.
func (h *Handle[V]) Close() error {
	err := backend.CloseAll(h.backends...)
	if h.badger != nil {
		if berr := h.badger.Close(); berr != nil {
			err = errors.Join(err, berr)
		}
	}
	if err != nil {
		return fmt.Errorf("could not close the storage: %v", err)
	}
	return nil
}
