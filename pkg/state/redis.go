package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "oauth_state:"

// getDelScript removes the record in the same step it is read, so concurrent
// consumers of one token cannot both win.
var getDelScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
	redis.call("DEL", KEYS[1])
end
return v
`)

// RedisStore keeps correlation records in redis with a TTL, so abandoned
// flows clean themselves up.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// RedisOption configures the RedisStore.
type RedisOption func(*RedisStore)

// WithTTL overrides the record lifetime.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore creates a redis-backed Store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("state: nil redis client")
	}
	s := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Create(ctx context.Context, data Data) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode state record: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state record: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Consume(ctx context.Context, provider, token string) (Data, error) {
	if token == "" {
		return Data{}, ErrStateNotFound
	}

	result, err := getDelScript.Run(ctx, s.client, []string{redisKeyPrefix + token}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Data{}, ErrStateNotFound
		}
		return Data{}, fmt.Errorf("failed to consume state record: %w", err)
	}

	payload, ok := result.(string)
	if !ok {
		return Data{}, ErrStateNotFound
	}

	var data Data
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return Data{}, ErrStateNotFound
	}

	// The record is already gone at this point, so a mismatch cannot be
	// retried with another provider name.
	if !matches(data, provider) {
		return Data{}, ErrStateNotFound
	}
	return data, nil
}
