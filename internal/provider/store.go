package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"signup-gateway/internal/common/database"
)

// Entry is one cached payload plus the instant it was fetched. Freshness
// is always judged by the provider's clock against FetchedAt, never by the
// backend store alone.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Store persists cached entries per resource key. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ==========================
// In-memory store
// ==========================

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore returns the default single-process store. Expiry is left
// entirely to the provider's TTL check, which keeps stale data available
// as a fallback after fetch errors.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]*Entry)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	return nil
}

// ==========================
// Redis store
// ==========================

type redisStore struct {
	client  *database.RedisClient
	prefix  string
	ttl     time.Duration
	tracked sync.Map
}

// NewRedisStore shares the cache across gateway replicas. Keys expire at
// roughly twice the provider TTL so a replica can still serve stale data
// while its refresh is failing.
func NewRedisStore(client *database.RedisClient, prefix string, ttl time.Duration) Store {
	return &redisStore{client: client, prefix: prefix, ttl: ttl * 2}
}

func (s *redisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *redisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key))
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.tracked.Store(key, struct{}{})
	return s.client.Set(ctx, s.key(key), string(data), s.ttl)
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	s.tracked.Delete(key)
	return s.client.Del(ctx, s.key(key))
}

func (s *redisStore) Clear(ctx context.Context) error {
	var firstErr error
	s.tracked.Range(func(k, _ interface{}) bool {
		if err := s.client.Del(ctx, s.key(k.(string))); err != nil && firstErr == nil {
			firstErr = err
		}
		s.tracked.Delete(k)
		return true
	})
	return firstErr
}
