package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "koanime:catalog:"

// RedisCache は複数インスタンスで共有するキャッシュ。TTLはRedis側で失効させる。
// Redisの障害はキャッシュミスとして扱う。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get はTTL内のエントリを返す。
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Redisからの読み込みに失敗しました", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return data, true
}

// Set はエントリをTTL付きで保存する。
func (r *RedisCache) Set(ctx context.Context, key string, payload []byte) {
	if err := r.client.Set(ctx, redisKeyPrefix+key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("Redisへの書き込みに失敗しました", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Ping はRedisへの疎通を確認する。
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
