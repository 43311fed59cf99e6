package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("key not found")

// Store wraps the Redis client used for TTL-bounded monitor state:
// the cached access token and alert dedup keys.
type Store struct {
	client *redis.Client
	log    zerolog.Logger
}

// New creates a new store from a redis:// URL
func New(redisURL string, log zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, domain.E(domain.KindStore, "store.connect", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, domain.E(domain.KindStore, "store.connect", err)
	}

	return &Store{client: client, log: log.With().Str("component", "store").Logger()}, nil
}

// NewWithClient wraps an existing client, used by tests with miniredis
func NewWithClient(client *redis.Client, log zerolog.Logger) *Store {
	return &Store{client: client, log: log.With().Str("component", "store").Logger()}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.E(domain.KindStore, "store.ping", err)
	}
	return nil
}

// Get retrieves a value by key
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", domain.E(domain.KindStore, "store.get", err)
	}
	return val, nil
}

// Set stores a value with a TTL (zero TTL means no expiry)
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return domain.E(domain.KindStore, "store.set", err)
	}
	return nil
}

// Exists checks if a key exists
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, domain.E(domain.KindStore, "store.exists", err)
	}
	return n > 0, nil
}

// Del deletes one or more keys
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return domain.E(domain.KindStore, "store.del", err)
	}
	return nil
}
