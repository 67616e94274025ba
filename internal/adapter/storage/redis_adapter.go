package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// decrStockScript lowers the published remaining counter, clamped at zero.
// The counter is display-only; the ledger makes the real decision.
var decrStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if quantity > current then
	quantity = current
end
if quantity > 0 then
	redis.call('DECRBY', key, quantity)
end

return current - quantity
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetStock(ctx context.Context, itemID string, remaining int) error {
	return r.client.Set(ctx, stockKeyPrefix+itemID, remaining, 0).Err()
}

func (r *RedisAdapter) DecrStock(ctx context.Context, itemID string, quantity int) error {
	return decrStockScript.Run(ctx, r.client, []string{stockKeyPrefix + itemID}, quantity).Err()
}

func (r *RedisAdapter) IncrStock(ctx context.Context, itemID string, quantity int) error {
	return r.client.IncrBy(ctx, stockKeyPrefix+itemID, int64(quantity)).Err()
}

func (r *RedisAdapter) DeleteStock(ctx context.Context, itemID string) error {
	return r.client.Del(ctx, stockKeyPrefix+itemID).Err()
}

// GetStock reads the published counter; missing keys read as zero.
func (r *RedisAdapter) GetStock(ctx context.Context, itemID string) (int, error) {
	val, err := r.client.Get(ctx, stockKeyPrefix+itemID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) DeleteIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
