package initial

import (
	"context"
	"fmt"
	"time"

	"Inkwell/internal/config"
	"Inkwell/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 未配置主机时返回 nil, nil，调用方按无缓存运行
func NewRedisClient(conf *config.Config) (*goredis.Client, error) {
	if !conf.RedisConfig.Enabled() {
		zlog.Info("Redis 未配置，跳过初始化")
		return nil, nil
	}
	port := conf.RedisConfig.Port
	if port == 0 {
		port = 6379
	}

	addr := fmt.Sprintf("%s:%d", conf.RedisConfig.Host, port)
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	zlog.Info("Redis 连接成功", zap.String("addr", addr))
	return client, nil
}
