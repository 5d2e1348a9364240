// README: Search result cache backed by Redis, keyed by the normalized query tuple.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"boleia/internal/types"
)

const cacheKeyPrefix = "boleia:search"

// Bounds applied to the configured cache TTL.
const (
	minCacheTTL = time.Second
	maxCacheTTL = 5 * time.Minute
)

var ErrCacheMiss = errors.New("cache miss")

// ResultCache stores whole search responses for a short time.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp *Response, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Response, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached search: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode cached search: %w", err)
	}
	return &resp, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, resp *Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	if err := c.client.Set(ctx, key, data, clampTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("cache search: %w", err)
	}
	return nil
}

// BuildKey renders the normalized query tuple:
// boleia:search:<from>|<to>|<from coords>|<to coords>|<radius>|<max>.
func BuildKey(t Terms, radiusKm float64, maxResults int) string {
	parts := []string{
		t.From.Key,
		t.To.Key,
		coordKey(t.From.Coords),
		coordKey(t.To.Coords),
		strconv.FormatFloat(radiusKm, 'f', -1, 64),
		strconv.Itoa(maxResults),
	}
	return cacheKeyPrefix + ":" + strings.Join(parts, "|")
}

// coordKey rounds to roughly 100 m so nearby repeats share an entry.
func coordKey(p *types.Point) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(p.Lat, 'f', 3, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 3, 64)
}

func clampTTL(ttl time.Duration) time.Duration {
	return max(minCacheTTL, min(maxCacheTTL, ttl))
}
