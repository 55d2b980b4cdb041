package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type IRedis interface {
	// SetOnce stores key only if it does not exist yet. It reports whether this caller set it.
	SetOnce(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) SetOnce(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error setting key %s: %v", key, err))
		return false, err
	}

	logrus.Debug(fmt.Sprintf("SetOnce for key %s stored=%t", key, ok))
	return ok, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
