package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kycstore/domain"
)

// ResendThrottleImpl implements domain.ResendThrottle with Redis key TTLs
type ResendThrottleImpl struct {
	client *redis.Client
	window time.Duration
}

// NewResendThrottle creates a throttle allowing one OTP send per window
func NewResendThrottle(client *redis.Client, window time.Duration) *ResendThrottleImpl {
	return &ResendThrottleImpl{client: client, window: window}
}

func (s *ResendThrottleImpl) key(identifier string) string {
	return fmt.Sprintf("otp:res:%s", identifier)
}

// CanResend implements domain.ResendThrottle
func (s *ResendThrottleImpl) CanResend(ctx context.Context, identifier string) (bool, int64, error) {
	ttl, err := s.client.TTL(ctx, s.key(identifier)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check resend TTL: %w", err)
	}

	// TTL <= 0: the key does not exist or has expired
	if ttl <= 0 {
		return true, 0, nil
	}

	wait := int64(ttl.Seconds())
	if wait == 0 {
		wait = 1
	}
	return false, wait, nil
}

// MarkSent implements domain.ResendThrottle
func (s *ResendThrottleImpl) MarkSent(ctx context.Context, identifier string) error {
	if err := s.client.Set(ctx, s.key(identifier), 1, s.window).Err(); err != nil {
		return fmt.Errorf("failed to set resend throttle: %w", err)
	}
	return nil
}

var _ domain.ResendThrottle = (*ResendThrottleImpl)(nil)
