// Package devotp keeps the latest plain sign-in code per email for dev-only retrieval (GET /dev/otp).
// Only wired when OTP_RETURN_TO_CLIENT is set outside production.
package devotp

import (
	"context"
	"strings"
	"time"

	"github.com/bluele/gcache"
)

// Store holds plain sign-in codes by email. Not used in production.
type Store interface {
	// Put stores code for email until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email if present and not expired.
	Get(ctx context.Context, email string) (code string, ok bool)
}

// MemoryStore is an in-memory Store backed by gcache.
type MemoryStore struct {
	cache gcache.Cache
	clock gcache.Clock
}

// NewMemoryStore returns a new in-memory dev code store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(gcache.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an injectable clock.
func NewMemoryStoreWithClock(clock gcache.Clock) *MemoryStore {
	return &MemoryStore{
		cache: gcache.New(1024).LRU().Clock(clock).Build(),
		clock: clock,
	}
}

// Put stores code for email until expiresAt. Already-expired entries are dropped.
func (s *MemoryStore) Put(ctx context.Context, email, code string, expiresAt time.Time) {
	key := normalize(email)
	ttl := expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		s.cache.Remove(key)
		return
	}
	_ = s.cache.SetWithExpire(key, code, ttl)
}

// Get returns the code for email if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, email string) (string, bool) {
	v, err := s.cache.Get(normalize(email))
	if err != nil {
		return "", false
	}
	code, ok := v.(string)
	return code, ok
}

func normalize(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
