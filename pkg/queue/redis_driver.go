package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// promoteScript moves due members of the delayed set onto the ready list in
// one step, so two workers never promote the same job.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

const promoteBatch = 100

// RedisDriver keeps ready jobs in a list and delayed jobs in a sorted set
// scored by their due time in unix milliseconds. Both survive restarts and
// are shared by every worker process.
type RedisDriver struct {
	rdb     *redis.Client
	ready   string
	delayed string

	// Wait bounds one blocking pop, and so how late a delayed job can be
	// promoted. Redis does not accept less than a second.
	Wait time.Duration

	now func() time.Time
}

// NewRedisDriver stores the named queue under foodie:queue:<name>.
func NewRedisDriver(rdb *redis.Client, name string) *RedisDriver {
	base := "foodie:queue:" + name
	return &RedisDriver{
		rdb:     rdb,
		ready:   base,
		delayed: base + ":delayed",
		Wait:    time.Second,
		now:     time.Now,
	}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.ready, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

func (d *RedisDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	due := d.now().Add(delay).UnixMilli()
	if err := d.rdb.ZAdd(ctx, d.delayed, redis.Z{Score: float64(due), Member: payload}).Err(); err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// Pop promotes due jobs, then waits up to d.Wait for one. It returns
// nil, nil when nothing arrived in time.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	if _, err := d.promote(ctx); err != nil {
		return nil, err
	}

	res, err := d.rdb.BRPop(ctx, d.Wait, d.ready).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	// BRPOP answers [key, value].
	return []byte(res[1]), nil
}

func (d *RedisDriver) promote(ctx context.Context) (int64, error) {
	now := strconv.FormatInt(d.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, d.rdb, []string{d.delayed, d.ready}, now, promoteBatch).Int64()
	if err != nil {
		return 0, fmt.Errorf("queue/redis: promote: %w", err)
	}
	return n, nil
}

// Len reports ready and delayed job counts.
func (d *RedisDriver) Len(ctx context.Context) (ready, delayed int64, err error) {
	pipe := d.rdb.Pipeline()
	r := pipe.LLen(ctx, d.ready)
	z := pipe.ZCard(ctx, d.delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("queue/redis: len: %w", err)
	}
	return r.Val(), z.Val(), nil
}
