package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "mfa:challenge:"

// ChallengeStore is the pluggable expiring key-value store behind MFA
// sessions. A challenge created on one instance must be verifiable from a
// request landing on another, so multi-instance deployments use the Redis
// store; the in-memory store serves single-instance and test deployments.
type ChallengeStore interface {
	Save(ctx context.Context, sessionID string, challenge *Challenge, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Challenge, error)
	Delete(ctx context.Context, sessionID string) error
}

var _ ChallengeStore = (*RedisChallengeStore)(nil)

// RedisChallengeStore keeps challenges in a shared Redis with native TTL
// expiry.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func redisChallengeKey(sessionID string) string {
	return challengeKeyPrefix + sessionID
}

func (s *RedisChallengeStore) Save(ctx context.Context, sessionID string, challenge *Challenge, ttl time.Duration) error {
	encoded, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("encode mfa challenge: %w", err)
	}
	if err := s.client.Set(ctx, redisChallengeKey(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, sessionID string) (*Challenge, error) {
	data, err := s.client.Get(ctx, redisChallengeKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var challenge Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("decode mfa challenge: %w", err)
	}
	return &challenge, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisChallengeKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

var _ ChallengeStore = (*MemoryChallengeStore)(nil)

// MemoryChallengeStore is the single-instance fallback, backed by an
// expiring in-process cache.
type MemoryChallengeStore struct {
	cache *gocache.Cache
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (s *MemoryChallengeStore) Save(_ context.Context, sessionID string, challenge *Challenge, ttl time.Duration) error {
	// Store a copy so callers cannot mutate the cached record in place.
	copied := *challenge
	copied.Methods = append([]string(nil), challenge.Methods...)
	copied.CodeHash = append([]byte(nil), challenge.CodeHash...)
	s.cache.Set(sessionID, &copied, ttl)
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, sessionID string) (*Challenge, error) {
	value, found := s.cache.Get(sessionID)
	if !found {
		return nil, ErrChallengeNotFound
	}
	stored := value.(*Challenge)
	copied := *stored
	copied.Methods = append([]string(nil), stored.Methods...)
	copied.CodeHash = append([]byte(nil), stored.CodeHash...)
	return &copied, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}
