package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/sqlite"
	"github.com/ruslano69/eavsql/pkg/core/value"
	"github.com/ruslano69/eavsql/pkg/resilience"
	"github.com/ruslano69/eavsql/pkg/store"
)

func newTestCache(t *testing.T, cfg Config) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	c, err := New(rdb, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedis_SetGetInvalidate(t *testing.T) {
	c, mr := newTestCache(t, Config{TTL: time.Minute})
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "people", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	obj := store.Object{
		"name":  value.String("ann"),
		"age":   value.Int(31),
		"score": value.Float(4.5),
		"blob":  value.Bytes([]byte{1, 2}),
	}
	require.NoError(t, c.Set(ctx, "people", "p1", obj))
	assert.True(t, mr.Exists("eav:obj:people:p1"))
	assert.Equal(t, time.Minute, mr.TTL("eav:obj:people:p1"))

	got, ok, err := c.Get(ctx, "people", "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, obj, got)

	require.NoError(t, c.Invalidate(ctx, "people", "p1"))
	_, ok, err = c.Get(ctx, "people", "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	c, mr := newTestCache(t, Config{Prefix: "t:", TTL: time.Second})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "c", "1", store.Object{"a": value.Int(1)}))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t, Config{})
	ctx := context.Background()

	require.NoError(t, mr.Set(c.Key("c", "1"), "{not json"))

	_, ok, err := c.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(c.Key("c", "1")))
}

func TestRedis_BreakerOpensWhenRedisIsDown(t *testing.T) {
	breaker := resilience.DefaultConfig("test-cache")
	breaker.MaxFailures = 2
	breaker.OpenTimeout = time.Hour
	c, mr := newTestCache(t, Config{Breaker: breaker})
	ctx := context.Background()

	mr.Close()

	_, _, err := c.Get(ctx, "c", "1")
	assert.Error(t, err)
	_, _, err = c.Get(ctx, "c", "1")
	assert.Error(t, err)
	assert.Equal(t, resilience.StateOpen, c.Breaker().State())

	// открытый breaker: промах без ошибки, запись пропускается
	_, ok, err := c.Get(ctx, "c", "1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(ctx, "c", "1", store.Object{}))

	err = c.Invalidate(ctx, "c", "1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestRedis_WithStore(t *testing.T) {
	c, mr := newTestCache(t, Config{})
	ctx := context.Background()

	conn, err := adapters.Open(ctx, sqlite.New(), adapters.Config{URL: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	s, err := store.New(conn, "people", store.WithCache(c))
	require.NoError(t, err)
	require.NoError(t, s.SystemSetup(ctx))

	id, err := s.Put(ctx, "", store.Object{"name": value.String("ann")}, nil)
	require.NoError(t, err)
	assert.False(t, mr.Exists(c.Key("people", id)))

	obj, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(c.Key("people", id)))

	// повторное чтение идет из кэша, даже если строки в БД уже нет
	_, err = conn.Delete(ctx, s.DataTable(), "oID = ?", []any{id})
	require.NoError(t, err)
	cached, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, obj, cached)

	require.NoError(t, s.Remove(ctx, id))
	assert.False(t, mr.Exists(c.Key("people", id)))
}
