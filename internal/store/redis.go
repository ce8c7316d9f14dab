package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// saveAccumulatedScript writes ARGV[1] to KEYS[1] only if it is not lower than
// the stored value.
const saveAccumulatedScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local next = tonumber(ARGV[1])
if next >= current then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`

// RedisStore persists the counter as two keys under "<namespace>:".
type RedisStore struct {
	client         *redis.Client
	accumulatedKey string
	activatedKey   string
	saveScript     *redis.Script
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(cfg RedisConfig, namespace string) (*RedisStore, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client:         client,
		accumulatedKey: namespace + ":" + KeyAccumulatedMs,
		activatedKey:   namespace + ":" + KeyActivated,
		saveScript:     redis.NewScript(saveAccumulatedScript),
	}, nil
}

// Load reads both keys with a single MGET.
func (s *RedisStore) Load(ctx context.Context) (Counter, error) {
	vals, err := s.client.MGet(ctx, s.accumulatedKey, s.activatedKey).Result()
	if err != nil {
		return Counter{}, fmt.Errorf("load counter: %w", err)
	}

	ms, err := parseInt(redisBytes(vals[0]))
	if err != nil {
		return Counter{}, fmt.Errorf("load counter: %w", err)
	}
	activated, err := parseBool(redisBytes(vals[1]))
	if err != nil {
		return Counter{}, fmt.Errorf("load counter: %w", err)
	}
	return Counter{AccumulatedMs: ms, Activated: activated}, nil
}

// SaveAccumulated writes ms unless the stored value is already higher.
func (s *RedisStore) SaveAccumulated(ctx context.Context, ms int64) error {
	err := s.saveScript.Run(ctx, s.client, []string{s.accumulatedKey}, ms).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("save %s: %w", KeyAccumulatedMs, err)
	}
	return nil
}

// SaveActivated writes the activated flag.
func (s *RedisStore) SaveActivated(ctx context.Context, activated bool) error {
	if err := s.client.Set(ctx, s.activatedKey, formatBool(activated), 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", KeyActivated, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisBytes(v interface{}) []byte {
	switch s := v.(type) {
	case string:
		return []byte(s)
	case []byte:
		return s
	default:
		return nil
	}
}
