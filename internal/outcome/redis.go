package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultChannel    = "builder:outcomes"
	defaultHistoryKey = "builder:outcomes:history"
	defaultHistoryMax = 500
)

// RedisSink fans outcomes out on a pub/sub channel and keeps a capped
// history list of the most recent ones.
type RedisSink struct {
	client     *redis.Client
	channel    string
	historyKey string
	historyMax int64
	logger     *zap.Logger
}

func NewRedisSink(redisURL string, logger *zap.Logger) (*RedisSink, error) {
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
	return NewRedisSinkWithClient(client, logger), nil
}

func NewRedisSinkWithClient(client *redis.Client, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		client:     client,
		channel:    defaultChannel,
		historyKey: defaultHistoryKey,
		historyMax: defaultHistoryMax,
		logger:     logger,
	}
}

// Handle is a bus handler. Progress outcomes are published but not kept in
// history. Redis failures are logged and never reach the workflow.
func (s *RedisSink) Handle(ctx context.Context, o Outcome) {
	if err := s.Record(ctx, o); err != nil {
		s.logger.Warn("record outcome", zap.String("kind", string(o.Kind)), zap.Error(err))
	}
}

func (s *RedisSink) Record(ctx context.Context, o Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	if o.Status == StatusProgress {
		return nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.historyKey, payload)
		pipe.LTrim(ctx, s.historyKey, 0, s.historyMax-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append outcome history: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *RedisSink) Recent(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.client.LRange(ctx, s.historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read outcome history: %w", err)
	}
	outcomes := make([]Outcome, 0, len(raw))
	for _, entry := range raw {
		var o Outcome
		if err := json.Unmarshal([]byte(entry), &o); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Subscribe streams outcomes published by any instance until ctx ends.
func (s *RedisSink) Subscribe(ctx context.Context) (<-chan Outcome, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe outcomes: %w", err)
	}
	out := make(chan Outcome)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var o Outcome
				if err := json.Unmarshal([]byte(msg.Payload), &o); err != nil {
					s.logger.Warn("decode outcome", zap.Error(err))
					continue
				}
				select {
				case out <- o:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
