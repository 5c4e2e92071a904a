package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ SeenStore = (*RedisSeenStore)(nil)

// RedisSeenStore keeps one Redis set per collection.
type RedisSeenStore struct {
	client *redis.Client
}

func NewRedisSeenStore(ctx context.Context, addr, password string, db int) (*RedisSeenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable(fmt.Sprintf("failed to connect to Redis at %s", addr), err)
	}

	slog.Debug("Connected to Redis", "addr", addr, "db", db)

	return &RedisSeenStore{client: client}, nil
}

func (s *RedisSeenStore) Exists(ctx context.Context, id, collection string) (bool, error) {
	found, err := s.client.SIsMember(ctx, seenKey(collection), id).Result()
	if err != nil {
		return false, unavailable(fmt.Sprintf("failed to check seen post %s in %s", id, collection), err)
	}
	return found, nil
}

func (s *RedisSeenStore) Insert(ctx context.Context, id, collection string) error {
	if err := s.client.SAdd(ctx, seenKey(collection), id).Err(); err != nil {
		return unavailable(fmt.Sprintf("failed to insert seen post %s into %s", id, collection), err)
	}
	return nil
}

func (s *RedisSeenStore) Prune(ctx context.Context, collection string, maxSize int) (int, error) {
	count, err := s.Count(ctx, collection)
	if err != nil {
		return 0, err
	}

	if count <= maxSize {
		return 0, nil
	}

	if err := s.client.Del(ctx, seenKey(collection)).Err(); err != nil {
		return 0, unavailable(fmt.Sprintf("failed to prune %s", collection), err)
	}

	return count, nil
}

func (s *RedisSeenStore) Count(ctx context.Context, collection string) (int, error) {
	count, err := s.client.SCard(ctx, seenKey(collection)).Result()
	if err != nil {
		return 0, unavailable(fmt.Sprintf("failed to count %s", collection), err)
	}
	return int(count), nil
}

func (s *RedisSeenStore) Close() error {
	return s.client.Close()
}

func seenKey(collection string) string {
	return fmt.Sprintf("seen:%s", collection)
}
