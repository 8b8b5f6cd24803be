// Package session stores intent-API sessions in Redis, keyed by token id.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// Data is what a session remembers about the wallet it was issued to.
type Data struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chain_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "builder:session:",
	}
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// Save records a session until expiresAt. An expiry in the past falls back
// to one day.
func (s *RedisStore) Save(ctx context.Context, tokenID, address string, chainID int64, expiresAt time.Time) error {
	data := Data{
		Address:   strings.ToLower(address),
		ChainID:   chainID,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(tokenID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, tokenID string) (Data, error) {
	payload, err := s.client.Get(ctx, s.key(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return Data{}, ErrSessionNotFound
	}
	if err != nil {
		return Data{}, fmt.Errorf("lookup session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return Data{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return data, nil
}

// Revoke deletes a session. Revoking an unknown session is not an error.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string) error {
	if err := s.client.Del(ctx, s.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
