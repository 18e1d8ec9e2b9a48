package slot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"
)

// MemoryStore is an in-process Store backed by LRU gcaches. Suitable for a single instance.
//
// Discoverable challenges live in their own cache: anonymous begins can only evict
// each other, never a user's pending code or challenge.
type MemoryStore struct {
	mu           sync.Mutex
	users        gcache.Cache
	discoverable gcache.Cache
	clock        gcache.Clock
}

// NewMemoryStore returns a MemoryStore holding up to size user slots and up to
// size discoverable challenges.
func NewMemoryStore(size int) *MemoryStore {
	return NewMemoryStoreWithClock(size, gcache.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an injectable clock for cache eviction.
func NewMemoryStoreWithClock(size int, clock gcache.Clock) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryStore{
		users:        gcache.New(size).LRU().Clock(clock).Build(),
		discoverable: gcache.New(size).LRU().Clock(clock).Build(),
		clock:        clock,
	}
}

func (s *MemoryStore) cacheFor(key Key) gcache.Cache {
	if key.Kind == KindWebAuthnDiscoverable {
		return s.discoverable
	}
	return s.users
}

// Put writes rec to key, replacing any previous record.
func (s *MemoryStore) Put(ctx context.Context, key Key, rec Record) error {
	ttl := rec.ExpiresAt.Sub(s.clock.Now()) + retention
	if ttl < retention {
		ttl = retention
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheFor(key).SetWithExpire(key.String(), rec, ttl)
}

// Get returns the record at key, or nil when the slot is empty.
func (s *MemoryStore) Get(ctx context.Context, key Key) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

// Consume compares secret with the stored record and deletes it on Match.
func (s *MemoryStore) Consume(ctx context.Context, key Key, secret string, now time.Time) (Outcome, *Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(key)
	if err != nil {
		return NotFound, nil, err
	}
	out := evaluate(rec, secret, now)
	if out == Match {
		s.cacheFor(key).Remove(key.String())
	}
	return out, rec, nil
}

// Delete empties the slot.
func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheFor(key).Remove(key.String())
	return nil
}

func (s *MemoryStore) get(key Key) (*Record, error) {
	v, err := s.cacheFor(key).Get(key.String())
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, ok := v.(Record)
	if !ok {
		return nil, errors.New("slot: unexpected cache value")
	}
	return &rec, nil
}
