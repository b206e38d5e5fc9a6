package storage_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codibre/tree-key-cache-storage/backend"
	"github.com/codibre/tree-key-cache-storage/keycodec"
	"github.com/codibre/tree-key-cache-storage/storage"
)

func newInsertOnly(t *testing.T, opts storage.Options) (*storage.InsertOnly[string], *server) {
	srv := newServer(t)
	s, err := storage.NewInsertOnly[string](srv.db(1), srv.db(childrenDB), opts)
	require.NoError(t, err)
	return s, srv
}

func history(t *testing.T, s storage.Storage[string], key string) []string {
	t.Helper()
	seq, err := s.GetHistory(ctx, key)
	require.NoError(t, err)
	return collect(t, seq)
}

func TestInsertOnlyOrdering(t *testing.T) {
	s, _ := newInsertOnly(t, storage.Options{})

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "my key", v))
		_, found, err := s.Get(ctx, "my key")
		require.NoError(t, err)
		assert.False(t, found)
	}

	assert.Equal(t, []string{"c", "b", "a"}, history(t, s, "my key"))
	assert.Empty(t, history(t, s, "never written"))
}

func TestInsertOnlyTruncation(t *testing.T) {
	s, srv := newInsertOnly(t, storage.Options{})

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Set(ctx, "my key", v))
	}
	srv.DB(1).Del(keycodec.SuffixKey("my key", 2))

	assert.Equal(t, []string{"d", "c"}, history(t, s, "my key"))
}

func TestInsertOnlyHistoryStopsEarly(t *testing.T) {
	s, _ := newInsertOnly(t, storage.Options{})
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, "k", v))
	}

	seq, err := s.GetHistory(ctx, "k")
	require.NoError(t, err)
	var got []string
	for v, err := range seq {
		require.NoError(t, err)
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"c", "b"}, got)
}

func TestInsertOnlyLiteralKeys(t *testing.T) {
	s, srv := newInsertOnly(t, storage.Options{})

	key := `tree:node_1\x`
	require.NoError(t, s.Set(ctx, key, "first"))
	require.NoError(t, s.Set(ctx, key, "second"))

	escaped := keycodec.Escape(key)
	counter, err := srv.DB(1).Get(escaped)
	require.NoError(t, err)
	assert.Equal(t, "2", counter)

	for version, want := range map[uint64]string{1: "first", 2: "second"} {
		got, err := srv.DB(1).Get(keycodec.SuffixKey(key, version))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// a key sharing a prefix with the escaped form doesn't interfere
	require.NoError(t, s.Set(ctx, "tree", "other"))
	assert.Equal(t, []string{"second", "first"}, history(t, s, key))
	assert.Equal(t, []string{"other"}, history(t, s, "tree"))
}

func TestInsertOnlyCorruptedCounter(t *testing.T) {
	s, srv := newInsertOnly(t, storage.Options{})

	require.NoError(t, srv.DB(1).Set("k", "not a number"))
	assert.Empty(t, history(t, s, "k"))

	require.NoError(t, s.Set(ctx, "k", "v"))
	counter, err := srv.DB(1).Get("k")
	require.NoError(t, err)
	assert.Equal(t, "1", counter)
	assert.Equal(t, []string{"v"}, history(t, s, "k"))
}

func TestInsertOnlyTTL(t *testing.T) {
	s, srv := newInsertOnly(t, storage.Options{DefaultTTL: time.Minute})

	require.NoError(t, s.Set(ctx, "k", "a"))
	ttl, found, err := s.GetCurrentTTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, srv.DB(1).TTL(keycodec.SuffixKey("k", 1)))

	require.NoError(t, s.SetWithTTL(ctx, "k", "b", time.Hour))
	ttl, _, err = s.GetCurrentTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	srv.FastForward(2 * time.Minute)
	// version 1 expired, which ends the history
	assert.Equal(t, []string{"b"}, history(t, s, "k"))
}

func TestInsertOnlyConcurrentSets(t *testing.T) {
	cases := []struct {
		description string
		open        func(t *testing.T) backend.Backend
		ttl         time.Duration
	}{
		{
			description: "redis without a ttl",
			open:        func(t *testing.T) backend.Backend { return newServer(t).db(1) },
		},
		{
			description: "redis with a ttl",
			open:        func(t *testing.T) backend.Backend { return newServer(t).db(1) },
			ttl:         time.Minute,
		},
		{
			description: "badger with a ttl",
			open:        func(t *testing.T) backend.Backend { return inMemoryBadger(t).Namespace(1) },
			ttl:         time.Minute,
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			s, err := storage.NewInsertOnly[string](c.open(t), nil, storage.Options{})
			require.NoError(t, err)

			const writers = 20
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.SetWithTTL(ctx, "k", strconv.Itoa(i), c.ttl))
				}(i)
			}
			wg.Wait()

			got := history(t, s, "k")
			require.Len(t, got, writers)
			seen := make(map[string]bool)
			for _, v := range got {
				seen[v] = true
			}
			assert.Len(t, seen, writers)
		})
	}
}

func TestInsertOnlyCounterOutlivesVersions(t *testing.T) {
	t.Run("a write with no expiry clears the counter's expiry", func(t *testing.T) {
		s, srv := newInsertOnly(t, storage.Options{})

		require.NoError(t, s.SetWithTTL(ctx, "k", "a", time.Minute))
		require.NoError(t, s.Set(ctx, "k", "b"))

		_, found, err := s.GetCurrentTTL(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)

		srv.FastForward(2 * time.Minute)
		require.NoError(t, s.Set(ctx, "k", "c"))
		require.NoError(t, s.Set(ctx, "k", "d"))

		got, err := srv.DB(1).Get(keycodec.SuffixKey("k", 2))
		require.NoError(t, err)
		assert.Equal(t, "b", got)
		// version 1 expired, which ends the history
		assert.Equal(t, []string{"d", "c", "b"}, history(t, s, "k"))
	})

	t.Run("a shorter ttl doesn't shorten the counter's life", func(t *testing.T) {
		s, srv := newInsertOnly(t, storage.Options{})

		require.NoError(t, s.SetWithTTL(ctx, "k", "a", time.Hour))
		require.NoError(t, s.SetWithTTL(ctx, "k", "b", time.Minute))

		ttl, found, err := s.GetCurrentTTL(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, time.Hour, ttl)

		srv.FastForward(2 * time.Minute)
		require.NoError(t, s.Set(ctx, "k", "c"))

		counter, err := srv.DB(1).Get("k")
		require.NoError(t, err)
		assert.Equal(t, "3", counter)
		got, err := srv.DB(1).Get(keycodec.SuffixKey("k", 1))
		require.NoError(t, err)
		assert.Equal(t, "a", got)
	})

	t.Run("a counter with no expiry keeps it", func(t *testing.T) {
		s, _ := newInsertOnly(t, storage.Options{})

		require.NoError(t, s.Set(ctx, "k", "a"))
		require.NoError(t, s.SetWithTTL(ctx, "k", "b", time.Minute))

		_, found, err := s.GetCurrentTTL(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestNegativeTTL(t *testing.T) {
	srv := newServer(t)
	simple, err := storage.NewSimple[string](srv.db(1), nil, storage.Options{})
	require.NoError(t, err)
	insertOnly, err := storage.NewInsertOnly[string](srv.db(2), nil, storage.Options{})
	require.NoError(t, err)
	roundRobin, err := storage.NewTimedRoundRobin[string]([]backend.Backend{srv.db(3)}, nil, storage.TimedOptions{})
	require.NoError(t, err)

	for name, s := range map[string]storage.Storage[string]{
		"simple":      simple,
		"insert-only": insertOnly,
		"round-robin": roundRobin,
	} {
		t.Run(name, func(t *testing.T) {
			err := s.SetWithTTL(ctx, "k", "v", -time.Second)
			assert.ErrorIs(t, err, storage.ErrInvalidConfig)
		})
	}
	for _, db := range []int{1, 2, 3} {
		assert.Empty(t, srv.DB(db).Keys(), "db %d", db)
	}
}

func TestInsertOnlyRandomIterate(t *testing.T) {
	s, _ := newInsertOnly(t, storage.Options{})

	require.NoError(t, s.Set(ctx, "x", "1"))
	require.NoError(t, s.Set(ctx, "x", "2"))
	require.NoError(t, s.Set(ctx, "y", "1"))

	assert.ElementsMatch(t, []string{"x", "y"}, collect(t, s.RandomIterate(ctx, "")))

	for _, k := range []string{"item 1", "my item", "a:b_c"} {
		require.NoError(t, s.Set(ctx, k, "v"))
	}
	assert.ElementsMatch(t, []string{"item 1", "my item"}, collect(t, s.RandomIterate(ctx, "*item*")))
	assert.ElementsMatch(t, []string{"a:b_c"}, collect(t, s.RandomIterate(ctx, "a:*")))
}

func TestInsertOnlyChildren(t *testing.T) {
	s, _ := newInsertOnly(t, storage.Options{ChildrenRegistry: true})

	require.NoError(t, s.RegisterChild(ctx, "", "a"))
	require.NoError(t, s.RegisterChild(ctx, "", "b"))

	children, err := s.GetChildren(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, collect(t, children))
}
