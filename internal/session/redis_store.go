// Package session provides the token revocation backend used on logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRevocationTTL bounds entries for tokens that carry no exp claim.
const defaultRevocationTTL = 24 * time.Hour

// Revocation is the record kept for each revoked token id
type Revocation struct {
	Subject   string    `json:"subject"`
	RevokedAt time.Time `json:"revoked_at"`
}

// RedisStore keeps revoked token ids in Redis until the token would have expired anyway
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed revocation store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "revoked:",
	}
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// RevokeToken marks tokenID as revoked until expiresAt. A zero or past
// expiresAt falls back to defaultRevocationTTL.
func (s *RedisStore) RevokeToken(ctx context.Context, tokenID, subject string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("revoke token: empty token id")
	}
	data, err := json.Marshal(Revocation{Subject: subject, RevokedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal revocation: %w", err)
	}

	ttl := defaultRevocationTTL
	if !expiresAt.IsZero() {
		if remaining := time.Until(expiresAt); remaining > 0 {
			ttl = remaining
		}
	}

	if err := s.client.Set(ctx, s.key(tokenID), data, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked and not yet aged out
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := s.client.Get(ctx, s.key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revocation: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
