package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb, "catalog:"), mr
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newRedisStore(t)

	val, found, err := store.Get(context.Background(), KeyFavorites)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyCategories, `[{"slug":"a","name":"A"}]`))

	val, found, err := store.Get(ctx, KeyCategories)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"slug":"a","name":"A"}]`, val)

	// Keys are namespaced and never expire
	raw, err := mr.Get("catalog:" + KeyCategories)
	require.NoError(t, err)
	assert.Equal(t, val, raw)
	assert.Zero(t, mr.TTL("catalog:"+KeyCategories))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), KeyProducts)
	assert.Error(t, err)

	err = store.Set(context.Background(), KeyProducts, "[]")
	assert.Error(t, err)
}
