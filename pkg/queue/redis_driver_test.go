package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisDriver(t *testing.T) (*RedisDriver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisDriver(rdb, "mail"), mr
}

func TestRedisDriverFIFO(t *testing.T) {
	d, mr := newRedisDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Push(ctx, []byte("one")))
	require.NoError(t, d.Push(ctx, []byte("two")))
	assert.True(t, mr.Exists("foodie:queue:mail"))

	got, err := d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
	got, err = d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestRedisDriverDelayed(t *testing.T) {
	d, _ := newRedisDriver(t)
	ctx := context.Background()
	clock := time.Now()
	d.now = func() time.Time { return clock }

	require.NoError(t, d.PushDelayed(ctx, []byte("later"), time.Minute))

	n, err := d.promote(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	ready, delayed, err := d.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ready)
	assert.Equal(t, int64(1), delayed)

	clock = clock.Add(time.Minute)
	got, err := d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", string(got))

	ready, delayed, err = d.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, ready+delayed)
}

func TestRedisDriverPromotesOnce(t *testing.T) {
	d, _ := newRedisDriver(t)
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, d.PushDelayed(ctx, []byte(p), -time.Second))
	}
	n, err := d.promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = d.promote(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ready, _, err := d.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ready)
}
