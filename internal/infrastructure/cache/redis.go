package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"corsi-booking/internal/config"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ interfaces.CacheService = (*RedisCache)(nil)

// claimSeatScript decrements the free-seat counter only while it is
// positive. Running it as a script makes the check-and-decrement a single
// step, so two concurrent claims for the last seat cannot both pass.
const claimSeatScript = `
	local key = KEYS[1]
	local current = redis.call("GET", key)
	if current == false then
		return redis.error_reply("seat counter not initialized")
	end
	local value = tonumber(current)
	if value <= 0 then
		return redis.error_reply("no seats left")
	end
	return redis.call("DECR", key)
`

type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{
		client: rdb,
	}
}

// NewRedisCacheWithConfig builds the cache client from the cache section
// of the application config.
func NewRedisCacheWithConfig(cfg *config.CacheConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})

	return &RedisCache{
		client: rdb,
	}
}

// GetClient exposes the underlying client for collaborators that share the
// same Redis instance (idempotency records, payment cart, queue).
func (r *RedisCache) GetClient() redis.UniversalClient {
	return r.client
}

func seatKey(courseID uuid.UUID, occurrenceIndex int) string {
	return fmt.Sprintf("course:seats:%s:%d", courseID.String(), occurrenceIndex)
}

func tokenKey(token string) string {
	return "booking:token:" + token
}

func (r *RedisCache) GetFreeSeats(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	val, err := r.client.Get(ctx, seatKey(courseID, occurrenceIndex)).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, interfaces.ErrSeatCounterMissing
		}
		return -1, fmt.Errorf("failed to get seat counter: %w", err)
	}

	seats, err := strconv.Atoi(val)
	if err != nil {
		return -1, fmt.Errorf("invalid seat counter value: %w", err)
	}

	return seats, nil
}

func (r *RedisCache) SetFreeSeats(ctx context.Context, courseID uuid.UUID, occurrenceIndex int, seats int, ttl time.Duration) error {
	// SetNX: a concurrent request may have seeded and already claimed from
	// the counter; overwriting here would hand those seats back.
	err := r.client.SetNX(ctx, seatKey(courseID, occurrenceIndex), seats, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set seat counter: %w", err)
	}

	return nil
}

func (r *RedisCache) ClaimSeat(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	result, err := r.client.Eval(ctx, claimSeatScript, []string{seatKey(courseID, occurrenceIndex)}).Result()
	if err != nil {
		switch err.Error() {
		case "seat counter not initialized":
			return -1, interfaces.ErrSeatCounterMissing
		case "no seats left":
			return -1, interfaces.ErrNoSeatsLeft
		}
		return -1, fmt.Errorf("failed to claim seat: %w", err)
	}

	remaining, ok := result.(int64)
	if !ok {
		return -1, fmt.Errorf("unexpected result type from Redis")
	}

	return int(remaining), nil
}

func (r *RedisCache) ReleaseSeat(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	result, err := r.client.Incr(ctx, seatKey(courseID, occurrenceIndex)).Result()
	if err != nil {
		return -1, fmt.Errorf("failed to release seat: %w", err)
	}

	return int(result), nil
}

func (r *RedisCache) IssueFormToken(ctx context.Context, token string, ttl time.Duration) error {
	err := r.client.Set(ctx, tokenKey(token), "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to issue form token: %w", err)
	}

	return nil
}

func (r *RedisCache) ConsumeFormToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	// GETDEL makes the token single-use: a replayed submission finds it gone.
	_, err := r.client.GetDel(ctx, tokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume form token: %w", err)
	}

	return true, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("key not found: %s", key)
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := r.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
