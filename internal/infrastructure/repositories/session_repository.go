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

// TokenStoreImpl implements domain.TokenStore using Redis
type TokenStoreImpl struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
}

// NewTokenStore creates a Redis token store. Keys expire maxAge after the
// session was created.
func NewTokenStore(client *redis.Client, maxAge time.Duration) *TokenStoreImpl {
	return &TokenStoreImpl{
		client: client,
		prefix: "kyc:session:",
		maxAge: maxAge,
	}
}

// Save implements domain.TokenStore. A session without a token is a logout
// marker and expires like any other session.
func (r *TokenStoreImpl) Save(ctx context.Context, clientID string, session *domain.PersistedSession) error {
	if session == nil {
		return fmt.Errorf("refusing to persist a nil session")
	}
	ttl := r.maxAge - time.Since(session.CreatedAt)
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, r.prefix+clientID, data, ttl).Err()
}

// Load implements domain.TokenStore
func (r *TokenStoreImpl) Load(ctx context.Context, clientID string) (*domain.PersistedSession, error) {
	data, err := r.client.Get(ctx, r.prefix+clientID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.PersistedSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		// Corrupt entries are dropped rather than retried forever
		r.client.Del(ctx, r.prefix+clientID)
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	return &session, nil
}

// Delete implements domain.TokenStore
func (r *TokenStoreImpl) Delete(ctx context.Context, clientID string) error {
	return r.client.Del(ctx, r.prefix+clientID).Err()
}

var _ domain.TokenStore = (*TokenStoreImpl)(nil)
