package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "journal:session:"
	codePrefix    = "journal:login:"
)

// RedisStore keeps sessions and login codes in Redis with expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis connects and pings the server.
func ConnectRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// IssueCode stores a one-time login code for u.
func (s *RedisStore) IssueCode(ctx context.Context, u User) (string, error) {
	payload, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}
	code := uuid.NewString()
	if err = s.client.Set(ctx, codePrefix+code, payload, CodeTTL).Err(); err != nil {
		return "", fmt.Errorf("store login code: %w", err)
	}
	return code, nil
}

// Redeem atomically consumes the code and opens a session.
func (s *RedisStore) Redeem(ctx context.Context, code string) (string, error) {
	payload, err := s.client.GetDel(ctx, codePrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("redeem login code: %w", err)
	}
	token := uuid.NewString()
	if err = s.client.Set(ctx, sessionPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Session resolves a session token.
func (s *RedisStore) Session(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUnauthenticated
	}
	payload, err := s.client.Get(ctx, sessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return User{}, ErrUnauthenticated
	}
	if err != nil {
		return User{}, fmt.Errorf("load session: %w", err)
	}
	var u User
	if err = json.Unmarshal(payload, &u); err != nil {
		return User{}, fmt.Errorf("decode session: %w", err)
	}
	return u, nil
}

// Revoke deletes a session.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
