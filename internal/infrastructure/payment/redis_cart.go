package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
)

var _ interfaces.PaymentStaging = (*RedisCartStaging)(nil)

const cartTTL = time.Hour

// RedisCartStaging keeps the pending payment cart in Redis. A session
// holds at most one staged line: ClearPending wipes whatever a previous
// abandoned submission left behind before StageLine writes the new one.
type RedisCartStaging struct {
	client      redis.UniversalClient
	checkoutURL string
	enabled     bool
}

func NewRedisCartStaging(client redis.UniversalClient, checkoutURL string, enabled bool) *RedisCartStaging {
	return &RedisCartStaging{
		client:      client,
		checkoutURL: checkoutURL,
		enabled:     enabled,
	}
}

func (s *RedisCartStaging) Available() bool {
	return s.enabled && s.client != nil && s.checkoutURL != ""
}

func (s *RedisCartStaging) ClearPending(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear pending cart: %w", err)
	}
	return nil
}

func (s *RedisCartStaging) StageLine(ctx context.Context, sessionID string, line interfaces.PaymentLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal payment line: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(sessionID), string(data), cartTTL).Err(); err != nil {
		return fmt.Errorf("failed to stage payment line: %w", err)
	}

	return nil
}

func (s *RedisCartStaging) CheckoutURL() string {
	return s.checkoutURL
}

func cartKey(sessionID string) string {
	return "cart:pending:" + sessionID
}
