package resilience

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"slothold/internal/pkg/clock"
)

const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord caches the serialized result of a completed operation.
type IdempotencyRecord struct {
	Key       string
	Result    []byte
	ExpiresAt time.Time
}

type IdempotencyStore interface {
	// Get returns nil when the key is absent or expired.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Set(ctx context.Context, key string, result []byte, ttl time.Duration) error
	// Delete removes the key; absent keys are not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the process-local layer, always present.
type MemoryStore struct {
	clk clock.Clock

	mu      sync.RWMutex
	records map[string]IdempotencyRecord
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryStore{clk: clk, records: make(map[string]IdempotencyRecord)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*IdempotencyRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if rec.ExpiresAt.Before(s.clk.Now()) {
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = IdempotencyRecord{Key: key, Result: result, ExpiresAt: s.clk.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// RedisStore is the optional durable layer under the memory store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "idem:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &IdempotencyRecord{Key: key, Result: val}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, result, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// LayeredStore reads from the first layer that has the key and writes through
// to every layer.
type LayeredStore struct {
	layers []IdempotencyStore
}

func NewLayeredStore(layers ...IdempotencyStore) *LayeredStore {
	return &LayeredStore{layers: layers}
}

func (s *LayeredStore) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	for _, l := range s.layers {
		rec, err := l.Get(ctx, key)
		if err != nil {
			log.Printf("idempotency_get_failed key=%s err=%v", key, err)
			continue
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *LayeredStore) Set(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	var firstErr error
	for _, l := range s.layers {
		if err := l.Set(ctx, key, result, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *LayeredStore) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, l := range s.layers {
		if err := l.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IdempotencyGuard runs an operation at most once per key within the TTL.
type IdempotencyGuard struct {
	store IdempotencyStore
	ttl   time.Duration
	locks *KeyedMutex
}

func NewIdempotencyGuard(store IdempotencyStore, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{store: store, ttl: ttl, locks: NewKeyedMutex()}
}

// Execute returns the cached result when the key has already completed
// (cached=true, result is json.RawMessage); otherwise it runs op, stores the
// serialized result and returns the op's value. The per-key lock prevents two
// concurrent identical requests from both missing the cache.
func (g *IdempotencyGuard) Execute(ctx context.Context, key string, op func(context.Context) (any, error)) (any, bool, error) {
	unlock := g.locks.Lock(key)
	defer unlock()

	rec, err := g.store.Get(ctx, key)
	if err != nil {
		// A failed cache read must not block the operation.
		log.Printf("idempotency_lookup_failed key=%s err=%v", key, err)
	}
	if rec != nil {
		return json.RawMessage(rec.Result), true, nil
	}

	out, err := op(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		log.Printf("idempotency_marshal_failed key=%s err=%v", key, err)
		return out, false, nil
	}
	if err := g.store.Set(ctx, key, raw, g.ttl); err != nil {
		log.Printf("idempotency_store_failed key=%s err=%v", key, err)
	}
	return out, false, nil
}

// Forget drops a completed key so the operation runs again on the next
// delivery. Used when a recorded outcome is compensated away.
func (g *IdempotencyGuard) Forget(ctx context.Context, key string) {
	unlock := g.locks.Lock(key)
	defer unlock()
	if err := g.store.Delete(ctx, key); err != nil {
		log.Printf("idempotency_forget_failed key=%s err=%v", key, err)
	}
}
