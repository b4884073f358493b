package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chopnow/storefront/internal/core/domain"
)

const (
	idempotencyKeyPrefix   = "idempotency:"
	sessionKeyPrefix       = "session:"
	identityChannelPrefix  = "identity:"
	idempotencyKeyTTL      = 24 * time.Hour
	identitySubscriberSize = 16
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err()
}

func (r *RedisAdapter) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisAdapter) RevokeSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) PublishIdentityChange(ctx context.Context, change domain.IdentityChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, identityChannelPrefix+change.UserID, payload).Err()
}

// SubscribeIdentityChanges forwards messages from the user's channel until
// ctx is done. Undecodable messages are dropped.
func (r *RedisAdapter) SubscribeIdentityChanges(ctx context.Context, userID string) (<-chan domain.IdentityChange, error) {
	sub := r.client.Subscribe(ctx, identityChannelPrefix+userID)
	// Wait for the subscription confirmation so publishes right after this
	// call are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan domain.IdentityChange, identitySubscriberSize)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.IdentityChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
