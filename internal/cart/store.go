package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TTL is how long an idle kiosk cart survives.
const TTL = 2 * time.Hour

// ErrCartNotFound is returned when a cart does not exist or has expired.
var ErrCartNotFound = errors.New("cart not found")

// Store persists kiosk carts.
type Store interface {
	Get(ctx context.Context, restaurantID, cartID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, restaurantID, cartID uuid.UUID) error
}

// KV is the subset of the Redis client used by RedisStore.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps carts as JSON values in Redis.
type RedisStore struct {
	rdb KV
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb KV) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func key(restaurantID, cartID uuid.UUID) string {
	return fmt.Sprintf("kiosk:cart:%s:%s", restaurantID, cartID)
}

func (s *RedisStore) Get(ctx context.Context, restaurantID, cartID uuid.UUID) (*Cart, error) {
	raw, err := s.rdb.Get(ctx, key(restaurantID, cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// Save writes the cart and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.rdb.Set(ctx, key(c.RestaurantID, c.ID), raw, TTL).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, restaurantID, cartID uuid.UUID) error {
	if err := s.rdb.Del(ctx, key(restaurantID, cartID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
