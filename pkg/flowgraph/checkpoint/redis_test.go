package checkpoint_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, opts ...checkpoint.RedisOption) (*checkpoint.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := checkpoint.NewRedisStoreFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// TestRedisStore_Prefix tests that keys are namespaced by the configured prefix.
func TestRedisStore_Prefix(t *testing.T) {
	store, mr := newRedisStore(t, checkpoint.WithRedisPrefix("test:"))

	require.NoError(t, store.Save("run-1", "intake", []byte(`{"a":1}`)))

	assert.True(t, mr.Exists("test:run-1:data"))
	assert.True(t, mr.Exists("test:run-1:seq"))
	assert.Equal(t, `{"a":1}`, mr.HGet("test:run-1:data", "intake"))
}

// TestRedisStore_TTL tests that run keys expire after the configured TTL.
func TestRedisStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t, checkpoint.WithRedisTTL(time.Minute))

	require.NoError(t, store.Save("run-1", "intake", []byte("x")))
	assert.Equal(t, time.Minute, mr.TTL("brdflow:cp:run-1:data"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load("run-1", "intake")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	ids, err := store.Runs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// TestRedisStore_ListSizes tests that List reports stored byte sizes.
func TestRedisStore_ListSizes(t *testing.T) {
	store, _ := newRedisStore(t)

	require.NoError(t, store.Save("run-1", "a", []byte("12345")))

	infos, err := store.List("run-1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(5), infos[0].Size)
	assert.False(t, infos[0].Timestamp.IsZero())
}
