package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithExpireScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count`)

var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisCounterStore struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func (s *RedisCounterStore) IncrAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrWithExpireScript.Run(ctx, s.rdb, []string{s.keyPrefix + key}, ttl.Milliseconds()).Int64()
}

func NewRedisCounterStore(db redis.UniversalClient, keyPrefix string) *RedisCounterStore {
	return &RedisCounterStore{
		rdb:       db,
		keyPrefix: keyPrefix,
	}
}

type RedisTokenStore struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func (s *RedisTokenStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.keyPrefix+key, value, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisTokenStore) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	deleted, err := deleteIfEqualsScript.Run(ctx, s.rdb, []string{s.keyPrefix + key}, value).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func NewRedisTokenStore(db redis.UniversalClient, keyPrefix string) *RedisTokenStore {
	return &RedisTokenStore{
		rdb:       db,
		keyPrefix: keyPrefix,
	}
}

type RedisBlocklist struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func (s *RedisBlocklist) Add(ctx context.Context, member string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.keyPrefix+member, "1", ttl).Err()
}

func (s *RedisBlocklist) Contains(ctx context.Context, member string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keyPrefix+member).Result()
	return n > 0, err
}

func NewRedisBlocklist(db redis.UniversalClient, keyPrefix string) *RedisBlocklist {
	return &RedisBlocklist{
		rdb:       db,
		keyPrefix: keyPrefix,
	}
}
