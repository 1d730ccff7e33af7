package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conorfennell/revision/internal/domain"
)

// DefaultRedisKey is the hash that holds the collection when no key is configured.
const DefaultRedisKey = "revision:cards"

// RedisStore keeps the collection in one Redis hash: field = card ID, value = JSON record.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load reads the whole hash. Fields that fail to decode are skipped.
func (s *RedisStore) Load(ctx context.Context) (map[string]domain.CardState, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load card states from %s: %w", s.key, err)
	}
	cards := make(map[string]domain.CardState, len(fields))
	for id, value := range fields {
		cs, err := decodeRecord(id, []byte(value))
		if err != nil {
			slog.Warn("Skipping malformed card record", "id", id, "error", err)
			continue
		}
		cards[id] = cs
	}
	return cards, nil
}

// Save replaces the hash inside a MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, cards map[string]domain.CardState) error {
	values := make(map[string]interface{}, len(cards))
	for id, cs := range cards {
		data, err := encodeRecord(cs)
		if err != nil {
			return err
		}
		values[id] = string(data)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(values) > 0 {
		pipe.HSet(ctx, s.key, values)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save card states to %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Export(ctx context.Context) ([]byte, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Marshal(cards)
}
