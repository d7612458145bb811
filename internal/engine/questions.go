package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Question is one quiz question. Index is 1-based.
type Question struct {
	Index      int    `json:"index"`
	Question   string `json:"question"`
	Type       string `json:"type"`
	Difficulty string `json:"difficulty"`
	Hints      string `json:"expected_answer_hints,omitempty"`
}

// QuestionCache holds the question list of each live quiz session. Entries
// expire after the cache's TTL so abandoned quizzes do not accumulate.
type QuestionCache interface {
	Put(ctx context.Context, sessionID string, qs []Question) error
	// Get returns ok=false when the session is unknown or expired.
	Get(ctx context.Context, sessionID string) ([]Question, bool, error)
	Delete(ctx context.Context, sessionID string) error
	// Prune drops expired entries and returns how many were removed.
	Prune(ctx context.Context) (int, error)
}

// DefaultQuestionTTL is how long an unfinished quiz stays answerable.
const DefaultQuestionTTL = 24 * time.Hour

type cacheEntry struct {
	questions []Question
	expires   time.Time
}

// MemoryQuestionCache is a process-local QuestionCache.
type MemoryQuestionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewMemoryQuestionCache returns an empty cache. A non-positive ttl uses
// DefaultQuestionTTL.
func NewMemoryQuestionCache(ttl time.Duration) *MemoryQuestionCache {
	if ttl <= 0 {
		ttl = DefaultQuestionTTL
	}
	return &MemoryQuestionCache{ttl: ttl, now: time.Now, entries: map[string]cacheEntry{}}
}

func (c *MemoryQuestionCache) Put(ctx context.Context, sessionID string, qs []Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]Question, len(qs))
	copy(cp, qs)
	c.entries[sessionID] = cacheEntry{questions: cp, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryQuestionCache) Get(ctx context.Context, sessionID string) ([]Question, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, sessionID)
		return nil, false, nil
	}
	cp := make([]Question, len(e.questions))
	copy(cp, e.questions)
	return cp, true, nil
}

func (c *MemoryQuestionCache) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

func (c *MemoryQuestionCache) Prune(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of cached sessions, expired or not.
func (c *MemoryQuestionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisQuestionCache stores question lists in Redis with key expiry, so
// quizzes survive restarts and can be shared between server instances.
type RedisQuestionCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisQuestionCache connects to addr and checks the connection.
func NewRedisQuestionCache(ctx context.Context, addr string, ttl time.Duration) (*RedisQuestionCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisQuestionCacheFromClient(rdb, ttl), nil
}

// NewRedisQuestionCacheFromClient wraps an existing client.
func NewRedisQuestionCacheFromClient(rdb redis.UniversalClient, ttl time.Duration) *RedisQuestionCache {
	if ttl <= 0 {
		ttl = DefaultQuestionTTL
	}
	return &RedisQuestionCache{rdb: rdb, ttl: ttl, prefix: "sparkcoach:quiz:"}
}

func (c *RedisQuestionCache) key(sessionID string) string {
	return c.prefix + sessionID
}

func (c *RedisQuestionCache) Put(ctx context.Context, sessionID string, qs []Question) error {
	raw, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(sessionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache questions: %w", err)
	}
	return nil
}

func (c *RedisQuestionCache) Get(ctx context.Context, sessionID string) ([]Question, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load questions: %w", err)
	}
	var qs []Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false, fmt.Errorf("decode questions: %w", err)
	}
	return qs, true, nil
}

func (c *RedisQuestionCache) Delete(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, c.key(sessionID)).Err()
}

// Prune is a no-op; Redis expires keys itself.
func (c *RedisQuestionCache) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

// Close releases the Redis connection.
func (c *RedisQuestionCache) Close() error {
	return c.rdb.Close()
}
