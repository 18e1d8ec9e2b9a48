package slot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript atomically compares the stored secret and deletes the key on a timely match.
// Returns {outcome, raw}; raw is empty for NotFound.
var consumeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return {0, ""}
end
local rec = cjson.decode(raw)
if rec["secret"] ~= ARGV[1] then
  return {1, raw}
end
if tonumber(ARGV[2]) > tonumber(rec["expires_at_ms"]) then
  return {2, raw}
end
redis.call("DEL", KEYS[1])
return {3, raw}
`)

// redisRecord is the JSON shape stored in Redis; the expiry travels in milliseconds so the script can compare it.
type redisRecord struct {
	Secret      string `json:"secret"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
	Payload     []byte `json:"payload,omitempty"`
}

// RedisStore is a Store shared between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	nowF   func() time.Time
}

// NewRedisStore returns a RedisStore namespacing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "signin"
	}
	return &RedisStore{client: client, prefix: prefix, nowF: time.Now}
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + ":slot:" + k.String()
}

// Put writes rec to key with a TTL of its remaining lifetime plus the retention window.
func (s *RedisStore) Put(ctx context.Context, key Key, rec Record) error {
	raw, err := json.Marshal(redisRecord{
		Secret:      rec.Secret,
		ExpiresAtMs: rec.ExpiresAt.UnixMilli(),
		Payload:     rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode slot: %w", err)
	}
	ttl := rec.ExpiresAt.Sub(s.nowF()) + retention
	if ttl < retention {
		ttl = retention
	}
	if err := s.client.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("put slot: %w", err)
	}
	return nil
}

// Get returns the record at key, or nil when the slot is empty.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return decodeRecord(raw)
}

// Consume compares secret with the stored record and deletes it on Match, in one script call.
func (s *RedisStore) Consume(ctx context.Context, key Key, secret string, now time.Time) (Outcome, *Record, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(key)}, secret, now.UnixMilli()).Slice()
	if err != nil {
		return NotFound, nil, fmt.Errorf("consume slot: %w", err)
	}
	if len(res) != 2 {
		return NotFound, nil, fmt.Errorf("consume slot: unexpected reply %v", res)
	}
	code, ok := res[0].(int64)
	if !ok {
		return NotFound, nil, fmt.Errorf("consume slot: unexpected outcome %v", res[0])
	}
	out := Outcome(code)
	if out == NotFound {
		return NotFound, nil, nil
	}
	raw, _ := res[1].(string)
	rec, err := decodeRecord([]byte(raw))
	if err != nil {
		return NotFound, nil, err
	}
	return out, rec, nil
}

// Delete empties the slot.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func decodeRecord(raw []byte) (*Record, error) {
	var r redisRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode slot: %w", err)
	}
	return &Record{
		Secret:    r.Secret,
		ExpiresAt: time.UnixMilli(r.ExpiresAtMs).UTC(),
		Payload:   r.Payload,
	}, nil
}
