package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

// RedisMode selects how a Redis key holds documents.
type RedisMode int

const (
	// RedisList pops documents from the head of a list until it is empty.
	RedisList RedisMode = iota
	// RedisString reads the value of a string key once.
	RedisString
)

// Redis yields documents stored under a Redis key.
type Redis struct {
	client *redis.Client
	key    string
	mode   RedisMode
	done   bool
}

var _ Source = (*Redis)(nil)

// NewRedis connects to the server described by opt.
func NewRedis(opt *redis.Options, key string, mode RedisMode) *Redis {
	return NewRedisClient(redis.NewClient(opt), key, mode)
}

// NewRedisClient uses an existing client. Close closes it.
func NewRedisClient(client *redis.Client, key string, mode RedisMode) *Redis {
	return &Redis{client: client, key: key, mode: mode}
}

func (s *Redis) Name() string {
	return "redis:" + s.key
}

// Ping checks the connection.
func (s *Redis) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (s *Redis) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	var (
		data []byte
		err  error
	)
	switch s.mode {
	case RedisString:
		s.done = true
		data, err = s.client.Get(ctx, s.key).Bytes()
	default:
		data, err = s.client.LPop(ctx, s.key).Bytes()
	}
	if errors.Is(err, redis.Nil) {
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read redis key %s: %w", s.key, err)
	}
	return data, nil
}

// Requeue pushes a document that could not be persisted back to the head of
// the list. It is a no-op for string keys.
func (s *Redis) Requeue(ctx context.Context, data []byte) error {
	if s.mode != RedisList {
		return nil
	}
	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to requeue to redis key %s: %w", s.key, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
