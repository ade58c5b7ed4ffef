package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolhub/toolhub/services/scoring/internal/domain"
)

func setupTestRedis(t *testing.T) (*FeaturedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFeaturedCache(client, 5*time.Minute), mr
}

func sampleList() *domain.FeaturedList {
	return &domain.FeaturedList{
		Tools: []domain.FeaturedTool{
			{ID: 2, Name: "Quill", Category: "writing", FeaturedScore: 84},
			{ID: 7, Name: "Sketchpad", Category: "design", FeaturedScore: 61,
				ScoreBreakdown: &domain.ScoreBreakdown{Quality: 20, Engagement: 26, Base: 61}},
		},
		Meta: domain.FeaturedMeta{
			Total:       2,
			Returned:    2,
			Limit:       10,
			Threshold:   50,
			MinFeatured: 20,
			GeneratedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestFeaturedCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFeaturedCache_SetGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	list := sampleList()

	require.NoError(t, cache.Set(ctx, 10, true, list))

	got, err := cache.Get(ctx, 10, true)
	require.NoError(t, err)
	assert.Equal(t, list, got)

	// Debug and non-debug listings are cached separately.
	other, err := cache.Get(ctx, 10, false)
	require.NoError(t, err)
	assert.Nil(t, other)

	assert.Equal(t, 5*time.Minute, mr.TTL(cacheKey(10, true)))
}

func TestFeaturedCache_Expires(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 10, false, sampleList()))
	mr.FastForward(6 * time.Minute)

	got, err := cache.Get(ctx, 10, false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFeaturedCache_Invalidate(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 10, false, sampleList()))
	require.NoError(t, cache.Set(ctx, 100, true, sampleList()))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, cache.Invalidate(ctx))

	assert.False(t, mr.Exists(cacheKey(10, false)))
	assert.False(t, mr.Exists(cacheKey(100, true)))
	assert.True(t, mr.Exists("unrelated"))

	// Nothing left to delete is fine.
	assert.NoError(t, cache.Invalidate(ctx))
}

func TestFeaturedCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey(5, false), "{not json"))

	_, err := cache.Get(context.Background(), 5, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal featured list")
}

func TestFeaturedCache_Unavailable(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), 5, false)
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), 5, false, sampleList()))
}
