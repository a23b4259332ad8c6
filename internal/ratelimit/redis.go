package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript is the fixed window on a single Redis key. A denied request
// leaves the counter untouched. Returns {allowed, count, pttl}.
var admitScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= max then
  return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// Redis shares the window across every process pointed at the same server.
type Redis struct {
	client redis.Scripter
	max    int
	window time.Duration
	prefix string
	now    Clock
}

func NewRedis(client redis.Scripter, max int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		max:    max,
		window: window,
		prefix: "ratelimit:contact:",
		now:    time.Now,
	}
}

func (l *Redis) Admit(ctx context.Context, key string) (Decision, error) {
	res, err := admitScript.Run(ctx, l.client, []string{l.prefix + key}, l.max, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis admit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis admit: unexpected reply %v", res)
	}
	allowed, count, pttl := res[0] == 1, int(res[1]), res[2]
	if pttl < 0 {
		pttl = l.window.Milliseconds()
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   l.now().Add(time.Duration(pttl) * time.Millisecond),
	}, nil
}
