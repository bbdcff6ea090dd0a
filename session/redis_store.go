package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix    = "wms:sess"
	defaultRedisRetention = time.Hour
	sweepScanCount        = 256
)

// Record hash: token, digest, iat, exp (unix ms).
// Index hash:  principal, exp (unix ms); keyed by the token digest.

const putScript = `
local old = redis.call("HGET", KEYS[1], "digest")
if old then
  redis.call("DEL", ARGV[6] .. old)
end
local owner = redis.call("HGET", KEYS[2], "principal")
if owner and owner ~= ARGV[1] then
  local ownerKey = ARGV[7] .. owner
  if redis.call("HGET", ownerKey, "digest") == ARGV[8] then
    redis.call("DEL", ownerKey)
  end
end
redis.call("DEL", KEYS[1], KEYS[2])
redis.call("HSET", KEYS[1], "token", ARGV[2], "digest", ARGV[8], "iat", ARGV[3], "exp", ARGV[4])
redis.call("HSET", KEYS[2], "principal", ARGV[1], "exp", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
redis.call("PEXPIRE", KEYS[2], ARGV[5])
return 1
`

const resolveScript = `
local principal = redis.call("HGET", KEYS[1], "principal")
if not principal then
  return false
end
local recKey = ARGV[2] .. principal
if redis.call("HGET", recKey, "digest") ~= ARGV[3] then
  redis.call("DEL", KEYS[1])
  return false
end
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1], recKey)
  return false
end
return principal
`

const invalidateScript = `
local digest = redis.call("HGET", KEYS[1], "digest")
if not digest then
  return 0
end
redis.call("DEL", KEYS[1])
local idxKey = ARGV[1] .. digest
if redis.call("HGET", idxKey, "principal") == ARGV[2] then
  redis.call("DEL", idxKey)
end
return 1
`

const sweepIndexScript = `
local principal = redis.call("HGET", KEYS[1], "principal")
if not principal then
  return 0
end
local recKey = ARGV[2] .. principal
local current = redis.call("HGET", recKey, "digest")
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[1]) or current ~= ARGV[3] then
  redis.call("DEL", KEYS[1])
  if current == ARGV[3] then
    redis.call("DEL", recKey)
  end
  return 1
end
return 0
`

const sweepRecordScript = `
local digest = redis.call("HGET", KEYS[1], "digest")
if not digest then
  return 0
end
local idxKey = ARGV[2] .. digest
local owner = redis.call("HGET", idxKey, "principal")
local exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
if exp <= tonumber(ARGV[1]) or owner ~= ARGV[3] then
  redis.call("DEL", KEYS[1])
  if owner == ARGV[3] then
    redis.call("DEL", idxKey)
  end
  return 1
end
return 0
`

var (
	putLua         = redis.NewScript(putScript)
	resolveLua     = redis.NewScript(resolveScript)
	invalidateLua  = redis.NewScript(invalidateScript)
	sweepIndexLua  = redis.NewScript(sweepIndexScript)
	sweepRecordLua = redis.NewScript(sweepRecordScript)
)

// RedisOptions configures a [RedisStore].
type RedisOptions struct {
	// Prefix namespaces every key. Defaults to "wms:sess". It is wrapped in
	// a {hash tag} unless it already carries one, so every key of a store
	// maps to the same Redis Cluster slot.
	Prefix string
	// Retention is added to a record's expiry to get the native Redis TTL.
	// Expiry decisions always use the stored exp field; the native TTL only
	// bounds memory when no sweeper runs. Defaults to one hour.
	Retention time.Duration
	// Now overrides the time source.
	Now func() time.Time
}

// RedisStore is a [Backend] that keeps records and the token index in
// Redis. Each mutation runs as one Lua script, so both structures change
// together even with many engine processes sharing the server.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore builds a Redis-backed session store. Single-node,
// failover and cluster clients are all supported; with a cluster client
// the whole store lives on the node owning the prefix's hash slot.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	opts.Prefix = hashTagged(opts.Prefix)
	if opts.Retention <= 0 {
		opts.Retention = defaultRedisRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisStore{
		redis:     client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
		now:       opts.Now,
	}
}

// Put implements [Backend].
func (s *RedisStore) Put(ctx context.Context, principalID, token string, ttl time.Duration) error {
	now := s.now()
	expiresAt := now.Add(ttl)

	keep := ttl + s.retention
	if keep < time.Millisecond {
		keep = time.Millisecond
	}

	digest := tokenDigest(token)
	err := putLua.Run(ctx, s.redis,
		[]string{s.recordKey(principalID), s.indexKey(digest)},
		principalID,
		token,
		now.UnixMilli(),
		expiresAt.UnixMilli(),
		keep.Milliseconds(),
		s.indexPrefix(),
		s.recordPrefix(),
		digest,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ResolvePrincipal implements [Backend].
func (s *RedisStore) ResolvePrincipal(ctx context.Context, token string) (string, bool, error) {
	digest := tokenDigest(token)
	principalID, err := resolveLua.Run(ctx, s.redis,
		[]string{s.indexKey(digest)},
		s.now().UnixMilli(),
		s.recordPrefix(),
		digest,
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return principalID, true, nil
}

// InvalidateByPrincipal implements [Backend].
func (s *RedisStore) InvalidateByPrincipal(ctx context.Context, principalID string) (bool, error) {
	n, err := invalidateLua.Run(ctx, s.redis,
		[]string{s.recordKey(principalID)},
		s.indexPrefix(),
		principalID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Sweep implements [Backend]. It walks the index keys and then the record
// keys with SCAN; each candidate is checked and removed by a script so a
// concurrent Put is never half-undone.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	nowMS := s.now().UnixMilli()
	removed := 0

	err := s.scan(ctx, s.indexPrefix(), func(key string) error {
		digest := strings.TrimPrefix(key, s.indexPrefix())
		n, err := sweepIndexLua.Run(ctx, s.redis, []string{key}, nowMS, s.recordPrefix(), digest).Int64()
		if err != nil {
			return err
		}
		removed += int(n)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = s.scan(ctx, s.recordPrefix(), func(key string) error {
		principalID := strings.TrimPrefix(key, s.recordPrefix())
		n, err := sweepRecordLua.Run(ctx, s.redis, []string{key}, nowMS, s.indexPrefix(), principalID).Int64()
		if err != nil {
			return err
		}
		removed += int(n)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return removed, nil
}

// Lookup returns the stored record for principalID, if any, without
// applying expiry.
func (s *RedisStore) Lookup(ctx context.Context, principalID string) (Record, bool, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(principalID)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}
	iat, _ := strconv.ParseInt(fields["iat"], 10, 64)
	exp, _ := strconv.ParseInt(fields["exp"], 10, 64)
	return Record{
		PrincipalID: principalID,
		Token:       fields["token"],
		IssuedAt:    time.UnixMilli(iat),
		ExpiresAt:   time.UnixMilli(exp),
	}, true, nil
}

// Ping measures one round-trip to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *RedisStore) scan(ctx context.Context, prefix string, fn func(key string) error) error {
	// A cluster SCAN only covers one node; the tagged keys all sit on one
	// master, so walking every master finds them.
	if cc, ok := s.redis.(*redis.ClusterClient); ok {
		return cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return scanNode(ctx, node, prefix, fn)
		})
	}
	return scanNode(ctx, s.redis, prefix, fn)
}

func scanNode(ctx context.Context, client redis.Cmdable, prefix string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", sweepScanCount).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// hashTagged wraps prefix in braces unless it already has a non-empty
// hash tag.
func hashTagged(prefix string) string {
	if open := strings.IndexByte(prefix, '{'); open >= 0 {
		if end := strings.IndexByte(prefix[open+1:], '}'); end > 0 {
			return prefix
		}
	}
	return "{" + prefix + "}"
}

func (s *RedisStore) recordPrefix() string { return s.prefix + ":rec:" }
func (s *RedisStore) indexPrefix() string  { return s.prefix + ":idx:" }

func (s *RedisStore) recordKey(principalID string) string {
	return s.recordPrefix() + principalID
}

func (s *RedisStore) indexKey(digest string) string {
	return s.indexPrefix() + digest
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var _ Backend = (*RedisStore)(nil)
