package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"merch/internal/claim/models"
	"merch/pkg/platform/sentinel"
)

const (
	redisCodePrefix = "merch:code:"
	redisIndexKey   = "merch:codes"
)

// Each transition runs as one script so the check and the write cannot interleave.
// ARGV[1] is the wallet, ARGV[2] the current unix millis.
const availabilityLua = `
local k = KEYS[1]
if redis.call('EXISTS', k) == 0 then return 'NOT_FOUND' end
local status = redis.call('HGET', k, 'status')
if status == 'used' then return 'USED' end
if status == 'reserved' then
  local untilMs = tonumber(redis.call('HGET', k, 'reserved_until') or '0')
  local by = redis.call('HGET', k, 'reserved_by') or ''
  if untilMs > tonumber(ARGV[2]) and string.lower(by) ~= string.lower(ARGV[1]) then
    return 'RESERVED'
  end
end
`

var markUsedScript = redis.NewScript(availabilityLua + `
redis.call('HSET', k, 'status', 'used', 'used_by', ARGV[1], 'used_at', ARGV[2])
redis.call('HDEL', k, 'reserved_by', 'reserved_until')
return 'OK'
`)

// ARGV[3] is the reservation expiry in unix millis.
var reserveScript = redis.NewScript(availabilityLua + `
redis.call('HSET', k, 'status', 'reserved', 'reserved_by', ARGV[1], 'reserved_until', ARGV[3])
return 'OK'
`)

// ARGV: event_id, token_uri, created_at millis, code.
var seedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'status', 'unused', 'event_id', ARGV[1], 'token_uri', ARGV[2], 'created_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
return 1
`)

// RedisStore keeps each code in a hash, with a set indexing all codes.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(code string) string {
	return redisCodePrefix + code
}

func (s *RedisStore) Get(ctx context.Context, code string) (*models.ClaimCode, error) {
	fields, err := s.client.HGetAll(ctx, codeKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("find claim code: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return decodeHash(code, fields)
}

func (s *RedisStore) MarkUsed(ctx context.Context, code, consumer string, now time.Time) (*models.ClaimCode, error) {
	res, err := markUsedScript.Run(ctx, s.client, []string{codeKey(code)}, consumer, now.UnixMilli()).Text()
	if err != nil {
		return nil, fmt.Errorf("mark claim code used: %w", err)
	}
	if err := scriptResult(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, code)
}

func (s *RedisStore) Reserve(ctx context.Context, code, holder string, now, until time.Time) (*models.ClaimCode, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{codeKey(code)}, holder, now.UnixMilli(), until.UnixMilli()).Text()
	if err != nil {
		return nil, fmt.Errorf("reserve claim code: %w", err)
	}
	if err := scriptResult(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, code)
}

func scriptResult(res string) error {
	switch res {
	case "OK":
		return nil
	case "NOT_FOUND":
		return sentinel.ErrNotFound
	case "USED":
		return sentinel.ErrAlreadyUsed
	case "RESERVED":
		return sentinel.ErrReserved
	default:
		return fmt.Errorf("unexpected registry script result %q", res)
	}
}

func (s *RedisStore) Seed(ctx context.Context, codes []models.ClaimCode) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.Cmd, len(codes))
	for i, c := range codes {
		cmds[i] = seedScript.Eval(ctx, pipe, []string{codeKey(c.Code), redisIndexKey},
			strconv.FormatUint(c.EventID, 10), c.TokenURI, c.CreatedAt.UnixMilli(), c.Code)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("seed claim codes: %w", err)
	}
	inserted := 0
	for _, cmd := range cmds {
		n, err := cmd.Int()
		if err != nil {
			return 0, fmt.Errorf("seed claim code: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.ClaimCode, error) {
	codes, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list claim codes: %w", err)
	}
	sort.Strings(codes)
	out := make([]models.ClaimCode, 0, len(codes))
	for _, code := range codes {
		c, err := s.Get(ctx, code)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeHash(code string, f map[string]string) (*models.ClaimCode, error) {
	eventID, err := strconv.ParseUint(f["event_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode event_id for %s: %w", code, err)
	}
	c := &models.ClaimCode{
		Code:       code,
		Status:     models.Status(f["status"]),
		EventID:    eventID,
		TokenURI:   f["token_uri"],
		ReservedBy: f["reserved_by"],
		UsedBy:     f["used_by"],
	}
	c.ReservedUntil = millis(f["reserved_until"])
	c.UsedAt = millis(f["used_at"])
	c.CreatedAt = millis(f["created_at"])
	return c, nil
}

func millis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
