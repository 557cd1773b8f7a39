package valuecache

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// DefaultKeyPrefix is prepended to the handle to form the Redis key.
const DefaultKeyPrefix = "tag:"

// MGetter is the minimal Redis surface the cache needs. *redis.Client and
// *redis.ClusterClient satisfy it through GoRedisMGetter.
type MGetter interface {
	MGet(ctx context.Context, keys ...string) ([]any, error)
}

// GoRedisMGetter adapts a go-redis client to MGetter.
type GoRedisMGetter struct {
	c redis.Cmdable
}

// NewGoRedisMGetter connects to the Redis server at addr.
func NewGoRedisMGetter(addr string) *GoRedisMGetter {
	return &GoRedisMGetter{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// WrapGoRedis adapts an existing go-redis client.
func WrapGoRedis(c redis.Cmdable) *GoRedisMGetter {
	return &GoRedisMGetter{c: c}
}

// MGet implements MGetter.
func (g *GoRedisMGetter) MGet(ctx context.Context, keys ...string) ([]any, error) {
	return g.c.MGet(ctx, keys...).Result()
}

// Redis reads tag values stored as one string key per tag.
type Redis struct {
	client MGetter
	prefix string
}

// NewRedis creates a Redis-backed cache. An empty prefix selects
// DefaultKeyPrefix.
func NewRedis(client MGetter, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Key returns the Redis key holding the value of h.
func (r *Redis) Key(h tag.Handle) string {
	return r.prefix + h.String()
}

// GetValues reads every handle with one MGET. Missing keys are omitted.
func (r *Redis) GetValues(ctx context.Context, handles []tag.Handle) (map[tag.Handle]Value, error) {
	out := make(map[tag.Handle]Value, len(handles))
	if len(handles) == 0 {
		return out, nil
	}

	keys := make([]string, len(handles))
	for i, h := range handles {
		keys[i] = r.Key(h)
	}

	raw, err := r.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	if len(raw) != len(keys) {
		return nil, fmt.Errorf("redis mget: got %d values for %d keys", len(raw), len(keys))
	}

	for i, v := range raw {
		if v == nil {
			continue
		}
		out[handles[i]] = Value{Raw: v}
	}
	return out, nil
}

var _ Service = (*Redis)(nil)
