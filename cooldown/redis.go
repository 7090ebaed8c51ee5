package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rustyeddy/tradegate/pkg/clock"
)

// extendScript stores max(current, requested) expiry in ms with a matching TTL.
var extendScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local exp = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
if cur > exp then exp = cur end
redis.call('SET', KEYS[1], exp, 'PX', exp - now)
return exp
`)

// Redis is a Registry shared between processes. Each asset is a key holding
// its expiry in unix milliseconds.
type Redis struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

type RedisOption func(*Redis)

func WithPrefix(p string) RedisOption {
	return func(r *Redis) { r.prefix = p }
}

func NewRedis(client *redis.Client, c clock.Clock, opts ...RedisOption) *Redis {
	if c == nil {
		c = clock.Real{}
	}
	r := &Redis{client: client, clock: c, prefix: "tradegate:cooldown:"}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Redis) key(asset string) string { return r.prefix + asset }

func (r *Redis) Set(ctx context.Context, asset string, d time.Duration) (Status, error) {
	if d <= 0 {
		return r.Status(ctx, asset)
	}
	now := r.clock.Now()
	want := now.Add(d).UnixMilli()

	got, err := extendScript.Run(ctx, r.client, []string{r.key(asset)}, want, now.UnixMilli()).Int64()
	if err != nil {
		return Status{}, fmt.Errorf("set cooldown %s: %w", asset, err)
	}
	return statusAt(asset, time.UnixMilli(got).UTC(), now), nil
}

func (r *Redis) Status(ctx context.Context, asset string) (Status, error) {
	v, err := r.client.Get(ctx, r.key(asset)).Result()
	if errors.Is(err, redis.Nil) {
		return Status{Asset: asset}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("cooldown status %s: %w", asset, err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("cooldown status %s: bad expiry %q", asset, v)
	}
	return statusAt(asset, time.UnixMilli(ms).UTC(), r.clock.Now()), nil
}

func (r *Redis) Clear(ctx context.Context, asset string) error {
	if err := r.client.Del(ctx, r.key(asset)).Err(); err != nil {
		return fmt.Errorf("clear cooldown %s: %w", asset, err)
	}
	return nil
}
