package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func newRedisStoreForTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	store := NewRedisStore(client, nil)
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func TestRedisStoreSetManyWritesEveryKeyWithoutExpiry(t *testing.T) {
	store, server := newRedisStoreForTest(t)
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string][]byte{
		"portal:teachers":    []byte(`[]`),
		"portal:submissions": []byte(`[{"id":"s1"}]`),
		"portal:requests":    []byte(`[]`),
	}))

	value, err := server.Get("portal:submissions")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"s1"}]`, value)
	assert.Zero(t, server.TTL("portal:teachers"))

	keys, err := store.Keys(ctx, "portal:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"portal:teachers", "portal:submissions", "portal:requests"}, keys)
}

func TestRedisStoreConnectionFailureIsNotAMiss(t *testing.T) {
	store, server := newRedisStoreForTest(t)
	ctx := context.Background()
	server.Close()

	_, err := store.Get(ctx, "portal:teachers")
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrStoreMiss))

	require.Error(t, store.SetMany(ctx, map[string][]byte{"portal:teachers": []byte(`[]`)}))
}

func TestRedisStoreWithoutClient(t *testing.T) {
	store := NewRedisStore(nil, nil)
	ctx := context.Background()

	_, err := store.Get(ctx, "portal:teachers")
	assert.True(t, errors.Is(err, appErrors.ErrStoreMiss))
	assert.NoError(t, store.Set(ctx, "portal:teachers", []byte(`[]`)))
	keys, err := store.Keys(ctx, "portal:")
	assert.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoError(t, store.Close())
}
