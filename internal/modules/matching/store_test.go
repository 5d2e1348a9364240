package matching

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKey(t *testing.T) {
	terms := Terms{
		From: Side{Key: "maputo", Coords: point(-25.96921, 32.57322)},
		To:   Side{Key: "beira"},
	}
	assert.Equal(t, "boleia:search:maputo|beira|-25.969,32.573|-|100|20", BuildKey(terms, 100, 20))
	assert.Equal(t, "boleia:search:maputo|beira|-25.969,32.573|-|12.5|5", BuildKey(terms, 12.5, 5))
}

func TestClampTTL(t *testing.T) {
	assert.Equal(t, time.Second, clampTTL(0))
	assert.Equal(t, 30*time.Second, clampTTL(30*time.Second))
	assert.Equal(t, 5*time.Minute, clampTTL(time.Hour))
}

// TestRedisCache runs against a real Redis when BOLEIA_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("BOLEIA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOLEIA_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	cache := NewRedisCache(client)
	key := BuildKey(Terms{From: Side{Key: "test from"}, To: Side{Key: "test to"}}, 100, 20)
	client.Del(ctx, key)

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := &Response{
		Rides: []Result{{Candidate: rideBetween("r-1", "Maputo", "", "Beira", ""), MatchType: MatchExact, CompatibilityScore: 100}},
		Stats: Stats{ByMatchType: map[MatchType]int{MatchExact: 1}, Total: 1, AverageScore: 100},
		SearchParams: SearchParams{
			Original:     Pair{From: "Test From", To: "Test To"},
			Normalized:   Pair{From: "test from", To: "test to"},
			RadiusKm:     100,
			MaxResults:   20,
			StrategyUsed: StrategyPrimary,
		},
	}
	require.NoError(t, cache.Set(ctx, key, want, 10*time.Second))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Rides, 1)
	assert.Equal(t, "r-1", string(got.Rides[0].ID))
	assert.True(t, want.Rides[0].DepartureAt.Equal(got.Rides[0].DepartureAt))
	assert.Equal(t, want.SearchParams, got.SearchParams)
	assert.Equal(t, 1, got.Stats.ByMatchType[MatchExact])

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 10*time.Second)
	client.Del(ctx, key)
}
