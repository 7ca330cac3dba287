package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kycstore/domain"
)

// PendingStoreImpl implements domain.PendingStore using Redis. One key per
// client, so a new challenge always overwrites the previous one.
type PendingStoreImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPendingStore creates a Redis pending-verification store
func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStoreImpl {
	return &PendingStoreImpl{
		client: client,
		prefix: "kyc:pending:",
		ttl:    ttl,
	}
}

// Save implements domain.PendingStore
func (r *PendingStoreImpl) Save(ctx context.Context, clientID string, pending *domain.PendingVerification) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending verification: %w", err)
	}
	return r.client.Set(ctx, r.prefix+clientID, data, r.ttl).Err()
}

// Load implements domain.PendingStore
func (r *PendingStoreImpl) Load(ctx context.Context, clientID string) (*domain.PendingVerification, error) {
	data, err := r.client.Get(ctx, r.prefix+clientID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPendingNotFound
		}
		return nil, err
	}

	var pending domain.PendingVerification
	if err := json.Unmarshal([]byte(data), &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending verification: %w", err)
	}
	return &pending, nil
}

// Delete implements domain.PendingStore
func (r *PendingStoreImpl) Delete(ctx context.Context, clientID string) error {
	return r.client.Del(ctx, r.prefix+clientID).Err()
}

var _ domain.PendingStore = (*PendingStoreImpl)(nil)
