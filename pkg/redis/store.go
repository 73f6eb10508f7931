package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Store.Get for a missing key
var ErrKeyNotFound = errors.New("key not found")

// ErrDisabled is returned when the store is used without Redis
var ErrDisabled = errors.New("redis disabled")

// Store is a small string key/value helper without expiry.
// Used for user preferences, which must survive restarts.
type Store struct {
	client *Client
	prefix string
}

// NewStore creates a new key/value helper
func NewStore(client *Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) key(name string) string {
	return fmt.Sprintf("%s:kv:%s", s.prefix, name)
}

// Get returns the stored value for name
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	if !s.client.Enabled() {
		return "", ErrDisabled
	}

	value, err := s.client.Redis().Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", name, err)
	}

	return value, nil
}

// Set stores value under name with no expiry
func (s *Store) Set(ctx context.Context, name, value string) error {
	if !s.client.Enabled() {
		return ErrDisabled
	}

	if err := s.client.Redis().Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}
