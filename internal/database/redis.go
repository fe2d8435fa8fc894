package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitRedis connects to redis. Redis is optional infrastructure (token
// blacklist, QR payloads, stats cache); when it is unreachable the server
// runs without it and callers must tolerate a nil client.
func InitRedis(logger *zap.Logger) *redis.Client {
	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without redis", zap.Error(err))
		return nil
	}

	logger.Info("redis connection established", zap.String("addr", addr))
	return rdb
}
