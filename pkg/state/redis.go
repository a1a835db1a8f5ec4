package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsforge/taskkit/pkg/api"
)

// RedisStore keeps a run's vars under a single Redis key as JSON. It
// backs runs whose steps are scheduled onto hosts that don't share a
// filesystem; the single-key SET gives the same atomicity the file
// backend gets from rename
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Store that persists vars under key using the
// provided client
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
	}
}

// WithExpiry sets a TTL applied on every Save, so abandoned runs don't
// accumulate state forever. Zero means no expiry
func (s *RedisStore) WithExpiry(ttl time.Duration) *RedisStore {
	s.ttl = ttl
	return s
}

// Load reads the vars key. A missing key yields empty vars, and so
// does a value holding valid JSON that is not an object. Only an
// unreachable server or an unparsable value is an error
func (s *RedisStore) Load(ctx context.Context) (api.Vars, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return api.Vars{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoadVars, err)
	}

	var doc any
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf(
			"%w: invalid JSON under %s: %s", ErrLoadVars, s.key, err,
		)
	}
	vars, ok := doc.(map[string]any)
	if !ok {
		return api.Vars{}, nil
	}
	return api.Vars(vars), nil
}

// Save replaces the vars key
func (s *RedisStore) Save(ctx context.Context, vars api.Vars) error {
	if vars == nil {
		vars = api.Vars{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrSaveVars, err)
	}
	return nil
}
