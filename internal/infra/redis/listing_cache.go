package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"imb-test-portal/internal/app"
	"imb-test-portal/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const listingKey = "portal:submissions:scored"

// ListingCache caches the scored submission listing in Redis as a single
// JSON value and falls back to the wrapped lister on cache miss. The
// reconciler scans this listing on every sign-in, so caching it keeps the
// document store off the hot path. Writes go through Invalidate, which the
// service calls after every upsert; Redis is never the source of truth, so
// any Redis error falls through to the lister.
type ListingCache struct {
	client *redis.Client
	lister app.ScoredLister
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewListingCache(client *redis.Client, lister app.ScoredLister, ttl time.Duration) *ListingCache {
	return &ListingCache{
		client: client,
		lister: lister,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ListingCache) ListScored(ctx context.Context) (map[string][]domain.ScoredSubmission, error) {
	if listing, ok := c.fromCache(ctx); ok {
		return listing, nil
	}

	result, err, _ := c.sf.Do(listingKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if listing, ok := c.fromCache(ctx); ok {
			return listing, nil
		}

		listing, err := c.lister.ListScored(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(listing)
		if err == nil {
			if err := c.client.Set(ctx, listingKey, data, c.ttlWithJitter()).Err(); err != nil {
				log.Printf("cache scored listing: %v", err)
			}
		}
		return listing, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]domain.ScoredSubmission), nil
}

// Invalidate drops the cached listing after a write.
func (c *ListingCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, listingKey).Err()
}

func (c *ListingCache) fromCache(ctx context.Context) (map[string][]domain.ScoredSubmission, bool) {
	data, err := c.client.Get(ctx, listingKey).Bytes()
	if err != nil {
		return nil, false
	}
	var listing map[string][]domain.ScoredSubmission
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, false
	}
	return listing, true
}

func (c *ListingCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
