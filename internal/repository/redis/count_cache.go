package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CountTTL       = 10 * time.Minute
	GenTTL         = 24 * time.Hour
	CountKeyPrefix = "count" // count:<counter>:<id>
	GenKeyPrefix   = "count:gen"
)

// 只有代数未变化时才回填：读库期间若有写入提交并失效，旧值不会被写回
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then
  gen = "0"
end
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// CountCache 计数读缓存。写路径不更新缓存只做失效；读侧 miss 后回源，带代数回填。
// TTL 只负责回收冷 key。
type CountCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Snapshot 读缓存时拿到的代数，回填时原样带回
type Snapshot struct {
	gen string
}

func NewCountCache(rdb *redis.Client) *CountCache {
	return &CountCache{rdb: rdb, ttl: CountTTL}
}

func (c *CountCache) key(counter string, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", CountKeyPrefix, counter, id)
}

func (c *CountCache) genKey(counter string, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", GenKeyPrefix, counter, id)
}

// Get 读取缓存计数；未命中时返回的 Snapshot 用于后续 Fill
func (c *CountCache) Get(ctx context.Context, counter string, id uint64) (int64, bool, Snapshot, error) {
	snap := Snapshot{gen: "0"}
	if c == nil {
		return 0, false, snap, nil
	}
	gen, err := c.rdb.Get(ctx, c.genKey(counter, id)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return 0, false, snap, err
	default:
		snap.gen = gen
	}

	val, err := c.rdb.Get(ctx, c.key(counter, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, snap, nil
	}
	if err != nil {
		return 0, false, snap, err
	}
	return val, true, snap, nil
}

// Fill 回填计数，期间发生过失效则放弃
func (c *CountCache) Fill(ctx context.Context, counter string, id uint64, n int64, snap Snapshot) (bool, error) {
	if c == nil {
		return false, nil
	}
	px := int64(c.ttl / time.Millisecond)
	res, err := fillScript.Run(ctx, c.rdb, []string{c.key(counter, id), c.genKey(counter, id)}, snap.gen, n, px).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Invalidate 写库提交后调用：代数 +1 并删除计数 key
func (c *CountCache) Invalidate(ctx context.Context, counter string, id uint64) error {
	if c == nil {
		return nil
	}
	gk := c.genKey(counter, id)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gk)
		p.Expire(ctx, gk, GenTTL)
		p.Del(ctx, c.key(counter, id))
		return nil
	})
	return err
}
