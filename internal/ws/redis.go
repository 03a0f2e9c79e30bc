package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel shared by all API instances.
const Channel = "kiosk:events"

type envelope struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Event        Event     `json:"event"`
}

// PubSub is the subset of the Redis client used by RedisBridge.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisBridge publishes events through Redis so that every instance's Hub
// sees them, whichever instance produced the change.
type RedisBridge struct {
	rdb    PubSub
	hub    *Hub
	logger *zap.Logger
}

func NewRedisBridge(rdb PubSub, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.L()
	}
	return &RedisBridge{rdb: rdb, hub: hub, logger: logger.Named("ws.redis")}
}

func (b *RedisBridge) Publish(ctx context.Context, restaurantID uuid.UUID, event Event) error {
	data, err := json.Marshal(envelope{RestaurantID: restaurantID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards messages from Redis into the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	b.logger.Info("subscribed", zap.String("channel", Channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch([]byte(msg.Payload))
		}
	}
}

func (b *RedisBridge) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("dropping malformed message", zap.Error(err))
		return
	}
	b.hub.BroadcastToRestaurant(env.RestaurantID, env.Event)
}
