package userconfig

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codibre/tree-key-cache-storage/cursor"
	"github.com/codibre/tree-key-cache-storage/storage"
)

func redisMeta(t *testing.T, mode string) (*Meta, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return &Meta{
		Mode:             mode,
		Host:             mr.Host(),
		Port:             port,
		TreeDB:           intPtr(1),
		ChildrenRegistry: true,
	}, mr
}

func TestBuildRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("simple", func(t *testing.T) {
		m, mr := redisMeta(t, ModeSimple)
		h, err := Build[string](m)
		require.NoError(t, err)
		defer h.Close()

		require.IsType(t, &storage.Simple[string]{}, h.Storage)
		require.NoError(t, h.Storage.Set(ctx, "k", "v"))
		require.NoError(t, h.Storage.RegisterChild(ctx, "", "k"))

		got, err := mr.DB(1).Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		assert.Len(t, mr.DB(15).Keys(), 1)
		assert.NoError(t, h.Cleanup())
	})

	t.Run("insert-only in buffer mode", func(t *testing.T) {
		m, _ := redisMeta(t, ModeInsertOnly)
		m.BufferMode = true
		h, err := Build[[]byte](m)
		require.NoError(t, err)
		defer h.Close()

		require.IsType(t, &storage.InsertOnly[[]byte]{}, h.Storage)
		require.NoError(t, h.Storage.Set(ctx, "k", []byte("a")))
		require.NoError(t, h.Storage.Set(ctx, "k", []byte("b")))

		seq, err := h.Storage.GetHistory(ctx, "k")
		require.NoError(t, err)
		values, err := cursor.Collect(seq)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("b"), []byte("a")}, values)
	})

	t.Run("round robin over a pool", func(t *testing.T) {
		m, mr := redisMeta(t, ModeRoundRobin)
		m.TreeDB = nil
		m.TreeDBPool = []PoolEntry{{DBs: []int{2, 3}}, {DBs: []int{4}}}
		h, err := Build[string](m)
		require.NoError(t, err)
		defer h.Close()

		rr, ok := h.Storage.(*storage.TimedRoundRobin[string])
		require.True(t, ok)
		require.NoError(t, rr.Set(ctx, "k", "v"))

		got, err := mr.DB([]int{2, 3, 4}[rr.ActiveIndex()]).Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := Build[string](&Meta{Mode: ModeSimple})
		assert.ErrorIs(t, err, storage.ErrInvalidConfig)
	})
}

func TestBuildBadger(t *testing.T) {
	ctx := context.Background()
	h, err := Build[string](&Meta{
		Backend:          BackendBadger,
		Mode:             ModeRoundRobin,
		TreeDBPool:       []PoolEntry{{DBs: []int{1, 2}}},
		ChildrenRegistry: true,
		Badger:           Badger{InMemory: true},
	})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Storage.Set(ctx, "k", "v"))
	v, found, err := h.Storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	require.NoError(t, h.Storage.RegisterChild(ctx, "", "k"))
	children, err := h.Storage.GetChildren(ctx, "")
	require.NoError(t, err)
	names, err := cursor.Collect(children)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, names)

	require.NoError(t, h.Storage.ClearAllChildrenRegistry(ctx))
	v, found, err = h.Storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}
