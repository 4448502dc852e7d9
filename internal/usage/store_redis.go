package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// reserveScriptSource trims the window, counts and conditionally adds n members.
// KEYS[1] sorted set; ARGV: since_ms, limit, n, at_ms, ttl_ms, member...
// Returns {count_before, reserved}.
const reserveScriptSource = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
local limit = tonumber(ARGV[2])
local n = tonumber(ARGV[3])
if count + n > limit then
  return {count, 0}
end
for i = 6, #ARGV do
  redis.call('ZADD', KEYS[1], ARGV[4], ARGV[i])
end
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {count, 1}
`

var reserveScript = goredis.NewScript(reserveScriptSource)

// evaler is the subset of the go-redis client the store needs.
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *goredis.Cmd
	ZCount(ctx context.Context, key, min, max string) *goredis.IntCmd
}

type redisStore struct {
	rdb    evaler
	prefix string
}

// NewRedisStore returns a Store backed by one sorted set per (user, kind).
func NewRedisStore(rdb *goredis.Client) Store {
	return &redisStore{rdb: rdb, prefix: "usage"}
}

// DialRedis parses a redis:// URL and verifies connectivity.
func DialRedis(ctx context.Context, rawURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *redisStore) key(userID string, kind Kind) string {
	return s.prefix + ":" + string(kind) + ":" + userID
}

func (s *redisStore) Count(ctx context.Context, userID string, kind Kind, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, s.key(userID, kind), strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *redisStore) Reserve(ctx context.Context, userID string, kind Kind, n, limit int, tag string, since, at time.Time) (int, bool, error) {
	keys := []string{s.key(userID, kind)}
	args := reserveArgs(n, limit, tag, since, at)

	res, err := s.rdb.EvalSha(ctx, reserveScript.Hash(), keys, args...).Result()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		res, err = s.rdb.Eval(ctx, reserveScriptSource, keys, args...).Result()
	}
	if err != nil {
		return 0, false, fmt.Errorf("usage reserve script: %w", err)
	}
	return parseReserveResult(res)
}

func reserveArgs(n, limit int, tag string, since, at time.Time) []interface{} {
	args := []interface{}{
		since.UnixMilli(),
		limit,
		n,
		at.UnixMilli(),
		(Window + time.Minute).Milliseconds(),
	}
	for i := 0; i < n; i++ {
		args = append(args, uuid.NewString()+":"+tag)
	}
	return args
}

func parseReserveResult(res interface{}) (int, bool, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, false, errors.New("usage reserve script: unexpected reply")
	}
	count, ok1 := vals[0].(int64)
	flag, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, false, errors.New("usage reserve script: unexpected reply")
	}
	return int(count), flag == 1, nil
}
