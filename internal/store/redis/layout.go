package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"advchart/internal/indicator"
)

// kv is the subset of the Redis client the layout store needs.
type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// LayoutStore persists indicator layouts as JSON strings. Saves go through a
// Breaker; while it is open the newest layout per key is held back and
// written by Flush once Redis answers again.
type LayoutStore struct {
	rdb     kv
	breaker *Breaker
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string][]byte
}

// NewLayoutStore creates a store on rdb. A nil breaker gets the default
// (3 failures, 10s cool-down).
func NewLayoutStore(rdb kv, breaker *Breaker, log *slog.Logger) *LayoutStore {
	if breaker == nil {
		breaker = NewBreaker(3, 10*time.Second)
	}
	if log == nil {
		log = slog.Default()
	}
	return &LayoutStore{rdb: rdb, breaker: breaker, log: log, pending: make(map[string][]byte)}
}

// Load returns the stored layout for key, or nil if none was saved.
func (s *LayoutStore) Load(ctx context.Context, key string) ([]indicator.Instance, error) {
	s.mu.Lock()
	held, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		return decodeLayout(held)
	}

	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeLayout(data)
}

// Save stores list under key. Data series are not persisted. When the
// breaker is open the layout is kept for the next Flush and Save returns nil.
func (s *LayoutStore) Save(ctx context.Context, key string, list []indicator.Instance) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	err = s.breaker.Do(func() error {
		return s.rdb.Set(ctx, key, data, 0).Err()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.pending, key)
		return nil
	}
	s.pending[key] = data
	if errors.Is(err, ErrBreakerOpen) {
		return nil
	}
	return fmt.Errorf("redis set %s: %w", key, err)
}

// Pending returns the number of layouts waiting to be written.
func (s *LayoutStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush retries every held-back layout. It stops at the first failure.
func (s *LayoutStore) Flush(ctx context.Context) int {
	s.mu.Lock()
	held := make(map[string][]byte, len(s.pending))
	for k, v := range s.pending {
		held[k] = v
	}
	s.mu.Unlock()

	flushed := 0
	for key, data := range held {
		err := s.breaker.Do(func() error {
			return s.rdb.Set(ctx, key, data, 0).Err()
		})
		if err != nil {
			break
		}
		s.mu.Lock()
		// A newer Save may have replaced the entry meanwhile.
		if cur, ok := s.pending[key]; ok && string(cur) == string(data) {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		flushed++
	}
	if flushed > 0 {
		s.log.Info("flushed held-back layouts", slog.Int("count", flushed))
	}
	return flushed
}

// Run calls Flush every interval until ctx is cancelled.
func (s *LayoutStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Pending() > 0 {
				s.Flush(ctx)
			}
		}
	}
}

func decodeLayout(data []byte) ([]indicator.Instance, error) {
	var list []indicator.Instance
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	return list, nil
}
