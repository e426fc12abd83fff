package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository/memory"
)

// redisForTest connects to REDIS_TEST_URI and skips when it is not set.
func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	uri := os.Getenv("REDIS_TEST_URI")
	if uri == "" {
		t.Skip("REDIS_TEST_URI not set")
	}
	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestProfileCacheWithoutRedis(t *testing.T) {
	store := memory.New()
	store.SeedUser(models.UserProfile{ID: "alice", Name: "Alice Ridge"})
	cache := NewProfileCache(store, nil, 0)

	assert.Equal(t, "Alice Ridge", cache.Lookup(context.Background(), "alice").Name)
	assert.Equal(t, models.UserProfile{ID: "ghost"}, cache.Lookup(context.Background(), "ghost"))
	assert.Equal(t, profileTTL, cache.ttl)
	assert.Equal(t, maxProfileTTL, NewProfileCache(store, nil, 72*time.Hour).ttl)
	assert.Equal(t, minProfileTTL, NewProfileCache(store, nil, time.Minute).ttl)
}

func TestProfileCacheServesFromRedis(t *testing.T) {
	rdb := redisForTest(t)
	ctx := context.Background()
	rdb.Del(ctx, profileKeyPrefix+"cached-user")

	store := memory.New()
	store.SeedUser(models.UserProfile{ID: "cached-user", Name: "Before"})
	cache := NewProfileCache(store, rdb, time.Hour)
	assert.Equal(t, "Before", cache.Lookup(ctx, "cached-user").Name)

	// The store changes but the cached copy is still served.
	store.SeedUser(models.UserProfile{ID: "cached-user", Name: "After"})
	assert.Equal(t, "Before", cache.Lookup(ctx, "cached-user").Name)
}

func TestRedisRecentCache(t *testing.T) {
	rdb := redisForTest(t)
	ctx := context.Background()
	cache := NewRedisRecentCache(rdb)
	groupID := primitive.NewObjectID()
	t.Cleanup(func() { cache.Invalidate(ctx, groupID.Hex()) })

	msg := func(text string) models.GroupMessage {
		return models.GroupMessage{ID: primitive.NewObjectID(), GroupID: groupID, Sender: "alice", Text: text, SentAt: time.Now().UTC()}
	}

	// Pushing to a cold key keeps it cold.
	cache.Push(ctx, msg("lost"))
	_, ok := cache.Recent(ctx, groupID.Hex())
	assert.False(t, ok)

	// A push between mark and warm makes the snapshot stale.
	mark := cache.Mark(ctx, groupID.Hex())
	cache.Push(ctx, msg("raced"))
	cache.Warm(ctx, groupID.Hex(), mark, []models.GroupMessage{msg("old")})
	_, ok = cache.Recent(ctx, groupID.Hex())
	assert.False(t, ok)

	one := msg("one")
	cache.Warm(ctx, groupID.Hex(), cache.Mark(ctx, groupID.Hex()), []models.GroupMessage{one, msg("two")})
	cache.Push(ctx, msg("three"))
	cache.Push(ctx, one)

	got, ok := cache.Recent(ctx, groupID.Hex())
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "three", got[2].Text)

	for i := 0; i < recentMaxLen+5; i++ {
		cache.Push(ctx, msg("filler"))
	}
	got, ok = cache.Recent(ctx, groupID.Hex())
	require.True(t, ok)
	assert.Len(t, got, recentMaxLen)

	mark = cache.Mark(ctx, groupID.Hex())
	cache.Invalidate(ctx, groupID.Hex())
	_, ok = cache.Recent(ctx, groupID.Hex())
	assert.False(t, ok)
	cache.Warm(ctx, groupID.Hex(), mark, []models.GroupMessage{msg("deleted")})
	_, ok = cache.Recent(ctx, groupID.Hex())
	assert.False(t, ok, "invalidate wins over an in-flight warm")
}
