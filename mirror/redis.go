package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casedock/authgate/session"
)

const defaultRedisKey = "authgate:mirror"

// RedisStore keeps the session document under a single key. The TTL bounds
// how long a session of a client that never signed out survives; zero means
// no expiry.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed mirror. An empty key falls back to
// "authgate:mirror".
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Load reads the stored session. An absent key is a miss, not an error.
func (s *RedisStore) Load(ctx context.Context) (*session.Session, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}

	return decodeDocument(data)
}

// Save replaces the stored document and resets its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *session.Session) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("%w: no redis client", ErrMirrorUnavailable)
	}

	data, err := encodeDocument(sess)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}
	return nil
}

// Clear deletes the key. Clearing an empty mirror is a no-op.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnavailable, err)
	}
	return nil
}
