package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache holds the fast paths backed by Redis. Postgres stays the source of
// truth; every miss or Redis error falls back to it.
type Cache struct {
	R *redis.Client
}

// RememberCheckout maps a user's idempotency key to the order it created.
func (c *Cache) RememberCheckout(ctx context.Context, userID, key, orderID string) error {
	return c.R.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// CheckoutOrder returns the order id remembered for the key, "" when none.
func (c *Cache) CheckoutOrder(ctx context.Context, userID, key string) (string, error) {
	id, err := c.R.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// setStatusScript writes the status only when its rank is above the cached
// one, so late or reordered events cannot move an order backwards.
var setStatusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rank')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'rank', ARGV[1], 'status', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// SetStatus caches status unless a later one is already cached.
func (c *Cache) SetStatus(ctx context.Context, orderID, status string) error {
	rank := orders.Status(status).Rank()
	return setStatusScript.Run(ctx, c.R, []string{fmt.Sprintf(KeyOrderStatus, orderID)},
		rank, status, TTLStatusCache.Milliseconds()).Err()
}

// Status returns the cached order status, "" on a miss.
func (c *Cache) Status(ctx context.Context, orderID string) (string, error) {
	s, err := c.R.HGet(ctx, fmt.Sprintf(KeyOrderStatus, orderID), "status").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return s, err
}

// MarkProcessed records that service handled id and reports whether it is
// the first to do so.
func (c *Cache) MarkProcessed(ctx context.Context, service, id string) (bool, error) {
	return c.R.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Result()
}

// Forget undoes MarkProcessed so a failed handler can be retried.
func (c *Cache) Forget(ctx context.Context, service, id string) error {
	return c.R.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
