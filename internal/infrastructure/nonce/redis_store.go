// Package nonce implements the one-time OAuth state store on Redis. The
// state is held server-side with a TTL; the value handed to the merchant's
// browser is only the key.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/ports"
)

const (
	keyPrefix = "oauth:state:"
	// StateTTL bounds how long an OAuth redirect may take before the state
	// expires and the flow must be restarted.
	StateTTL = 5 * time.Minute
)

// RedisStore stores short-lived OAuth state envelopes in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates the state store adapter.
func NewRedisStore(client *redis.Client) ports.NonceStore {
	return &RedisStore{client: client, ttl: StateTTL}
}

// Issue generates a cryptographically random 16-byte hex state, stores the
// envelope under it and returns the state for use as the OAuth state
// parameter.
func (s *RedisStore) Issue(ctx context.Context, data domain.StateData) (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	data.IssuedAt = time.Now().UTC()
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state data: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+state, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

// Consume retrieves and deletes the envelope in one round trip, so a state
// can be validated at most once regardless of outcome.
func (s *RedisStore) Consume(ctx context.Context, state string) (*domain.StateData, error) {
	raw, err := s.client.GetDel(ctx, keyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}
	var data domain.StateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state data: %w", err)
	}
	return &data, nil
}
