package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "inkwell:notification:unread:"

// UnreadCache 未读数缓存。未命中时 ok 为 false
type UnreadCache interface {
	Get(ctx context.Context, userID string) (count int64, ok bool, err error)
	Set(ctx context.Context, userID string, count int64) error
	Invalidate(ctx context.Context, userID string) error
}

type redisUnreadCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewRedisUnreadCache(rdb goredis.Cmdable, ttl time.Duration) UnreadCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisUnreadCache{rdb: rdb, ttl: ttl}
}

func unreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

func (c *redisUnreadCache) Get(ctx context.Context, userID string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, unreadKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// 脏数据直接删掉
		_ = c.rdb.Del(ctx, unreadKey(userID)).Err()
		return 0, false, nil
	}
	return n, true, nil
}

func (c *redisUnreadCache) Set(ctx context.Context, userID string, count int64) error {
	return c.rdb.Set(ctx, unreadKey(userID), count, c.ttl).Err()
}

func (c *redisUnreadCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, unreadKey(userID)).Err()
}
