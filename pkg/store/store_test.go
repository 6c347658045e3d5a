package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/sqlite"
	"github.com/ruslano69/eavsql/pkg/core/stmt"
	"github.com/ruslano69/eavsql/pkg/core/value"
)

var testEpoch = time.Unix(1700000000, 0)

func fixedClock() time.Time { return testEpoch }

func openTestConn(t *testing.T) *adapters.Conn {
	t.Helper()
	conn, err := adapters.Open(context.Background(), sqlite.New(), adapters.Config{Type: "sqlite", URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	s, err := New(openTestConn(t), "people", opts...)
	require.NoError(t, err)
	require.NoError(t, s.SystemSetup(context.Background()))
	return s
}

func baseTimes(t *testing.T, s *Store, id string) (cTm, uTm int64) {
	t.Helper()
	res, err := s.Conn().Select(context.Background(), s.BaseTable(), "cTm, uTm", "oID = ?", []any{id}, "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount())
	cTm, err = value.ToInt64(res.Get(0, 0))
	require.NoError(t, err)
	uTm, err = value.ToInt64(res.Get(0, 1))
	require.NoError(t, err)
	return cTm, uTm
}

func TestNew_Validation(t *testing.T) {
	conn := openTestConn(t)

	_, err := New(conn, "bad name")
	assert.ErrorIs(t, err, stmt.ErrIllegalArgument)

	_, err = New(nil, "ok")
	assert.ErrorIs(t, err, stmt.ErrIllegalArgument)

	s, err := New(conn, "ok_1")
	require.NoError(t, err)
	assert.Equal(t, "MB_ok_1", s.BaseTable())
	assert.Equal(t, "MD_ok_1", s.DataTable())
}

func TestSystemSetup_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SystemSetup(context.Background()))
}

func TestPut_UpsertIdempotence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, "", Object{"k": value.String("v")}, nil)
	require.NoError(t, err)
	assert.Len(t, id, value.GUIDLength)
	_, uTm1 := baseTimes(t, s, id)

	_, err = s.Put(ctx, id, Object{"k": value.String("v")}, nil)
	require.NoError(t, err)
	_, uTm2 := baseTimes(t, s, id)

	n, err := s.Conn().Count(ctx, s.DataTable(), "oID = ? AND kID = ? AND idx = 0", []any{id, "k"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Greater(t, uTm2, uTm1)

	obj, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, obj["k"].Equal(value.String("v")))
}

func TestPut_DefaultColumnPreservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, "", Object{"role": value.String("admin"), "name": value.String("ann")}, nil)
	require.NoError(t, err)
	cTm1, _ := baseTimes(t, s, id)

	// delta запись без role не трогает role
	_, err = s.Put(ctx, id, Object{"name": value.String("anna")}, []string{"name"})
	require.NoError(t, err)

	obj, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin", obj["role"].String())
	assert.Equal(t, "anna", obj["name"].String())

	// cTm пишется только при создании
	cTm2, _ := baseTimes(t, s, id)
	assert.Equal(t, cTm1, cTm2)
}

func TestPut_DeltaVersusFull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, "", Object{"a": value.Int(1), "b": value.Int(2)}, nil)
	require.NoError(t, err)

	_, err = s.Put(ctx, id, Object{"a": value.Int(3)}, []string{"a"})
	require.NoError(t, err)
	obj, _, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Object{"a": value.Int(3), "b": value.Int(2)}, obj)

	// полная запись без b удаляет b
	_, err = s.Put(ctx, id, Object{"a": value.Int(4)}, nil)
	require.NoError(t, err)
	obj, _, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Object{"a": value.Int(4)}, obj)

	// строка b осталась, но со значением Null
	n, err := s.Conn().Count(ctx, s.DataTable(), "oID = ? AND kID = ? AND typ = 0", []any{id, "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// changed key без значения - Null
	_, err = s.Put(ctx, id, Object{}, []string{"a"})
	require.NoError(t, err)
	obj, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, obj)
}

func TestPut_SameIDCollapses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "fixed-id", Object{"a": value.Int(1)}, nil)
	require.NoError(t, err)
	_, err = s.Put(ctx, "fixed-id", Object{"b": value.Int(2)}, []string{"b"})
	require.NoError(t, err)

	ids, err := s.KeySet(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed-id"}, ids)
}

func TestPut_InvalidKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "", Object{strings.Repeat("k", MaxKeyLength+1): value.Int(1)}, nil)
	assert.ErrorIs(t, err, stmt.ErrIllegalArgument)

	_, err = s.Put(ctx, strings.Repeat("i", MaxKeyLength+1), Object{}, nil)
	assert.ErrorIs(t, err, stmt.ErrIllegalArgument)
}

func TestTypeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("long text ", 20)
	tests := []struct {
		key  string
		val  value.Value
		kind value.Kind
	}{
		{"null", value.Null(), value.KindNull},
		{"short", value.String("hello"), value.KindShortString},
		{"digits", value.String("00123"), value.KindShortString},
		{"long", value.String(long), value.KindText},
		{"int", value.Int(-9007199254740993), value.KindInt},
		{"float", value.Float(3.25), value.KindFloat},
		{"whole_float", value.Float(3), value.KindFloat},
		{"bytes", value.Bytes([]byte{0, 1, 2, 255}), value.KindBytes},
	}

	attrs := Object{}
	for _, tt := range tests {
		attrs[tt.key] = tt.val
	}
	id, err := s.Put(ctx, "", attrs, nil)
	require.NoError(t, err)

	obj, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := obj[tt.key]
			assert.True(t, got.Equal(tt.val), "got %v (%s), expected %v (%s)", got, got.Kind(), tt.val, tt.kind)

			res, err := s.Conn().Select(ctx, s.DataTable(), "typ", "oID = ? AND kID = ?", []any{id, tt.key}, "", 0, 0)
			require.NoError(t, err)
			require.Equal(t, 1, res.RowCount())
			typ, err := value.ToInt64(res.Get(0, 0))
			require.NoError(t, err)
			assert.Equal(t, int64(tt.kind), typ)
		})
	}
}

func TestGet_Absent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, obj)

	// объект без атрибутов существует
	id, err := s.Put(ctx, "", Object{}, nil)
	require.NoError(t, err)
	obj, ok, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, obj)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Put(ctx, "", Object{"a": value.Int(1)}, nil)
	require.NoError(t, err)
	keep, err := s.Put(ctx, "", Object{"a": value.Int(2)}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, id))
	require.NoError(t, s.Remove(ctx, id))

	_, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Conn().Count(ctx, s.DataTable(), "oID = ?", []any{id})
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := s.KeySet(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, ids)
}

func TestKeyNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "", Object{"b": value.Int(1), "a": value.Int(1)}, nil)
	require.NoError(t, err)
	_, err = s.Put(ctx, "", Object{"c": value.String("x"), "a": value.Int(2)}, nil)
	require.NoError(t, err)

	names, err := s.KeyNames(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestLooselyIterateObjectID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.LooselyIterateObjectID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, first)

	expected := []string{"id-a", "id-b", "id-c", "id-d", "id-e"}
	for _, id := range []string{"id-c", "id-a", "id-e", "id-b", "id-d"} {
		_, err := s.Put(ctx, id, Object{"n": value.String(id)}, nil)
		require.NoError(t, err)
	}

	var visited []string
	for cur, err := s.LooselyIterateObjectID(ctx, ""); cur != ""; cur, err = s.LooselyIterateObjectID(ctx, cur) {
		require.NoError(t, err)
		visited = append(visited, cur)
	}
	assert.Equal(t, expected, visited)
}

func TestRandomObjectID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.RandomObjectID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	for _, id := range []string{"x1", "x2", "x3"} {
		_, err := s.Put(ctx, id, Object{}, nil)
		require.NoError(t, err)
	}
	id, err = s.RandomObjectID(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"x1", "x2", "x3"}, id)
}

func TestClearAndDestroy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "", Object{"a": value.Int(1)}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	ids, err := s.KeySet(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.SystemDestroy(ctx))
	_, err = s.KeySet(ctx)
	var se *adapters.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, adapters.KindExecution, se.Kind)

	// повторное создание после удаления
	require.NoError(t, s.SystemSetup(ctx))
	require.NoError(t, s.Maintenance(ctx))
}

func TestLongIndexNameWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	conn, err := adapters.Open(context.Background(), sqlite.New(), adapters.Config{URL: ":memory:"},
		adapters.WithLogger(logger))
	require.NoError(t, err)
	defer conn.Close()

	s, err := New(conn, "a_rather_long_collection_name")
	require.NoError(t, err)
	require.NoError(t, s.SystemSetup(context.Background()))

	assert.Contains(t, buf.String(), "exceeds 30 characters")

	// индекс с длинным именем работает
	_, err = s.Put(context.Background(), "", Object{"k": value.Int(1)}, nil)
	require.NoError(t, err)
}

// ========== cache / events ==========

type memoryCache struct {
	objects map[string]Object
	gets    int
	hits    int
}

func (c *memoryCache) Get(_ context.Context, collection, id string) (Object, bool, error) {
	c.gets++
	obj, ok := c.objects[collection+"/"+id]
	if ok {
		c.hits++
	}
	return obj, ok, nil
}

func (c *memoryCache) Set(_ context.Context, collection, id string, obj Object) error {
	c.objects[collection+"/"+id] = obj
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, collection, id string) error {
	delete(c.objects, collection+"/"+id)
	return nil
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestCacheAndEvents(t *testing.T) {
	cache := &memoryCache{objects: map[string]Object{}}
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestStore(t, WithCache(cache), WithPublisher(pub))
	ctx := context.Background()

	id, err := s.Put(ctx, "", Object{"a": value.Int(1)}, nil)
	require.NoError(t, err, "publish failure must not fail the write")

	_, _, err = s.Get(ctx, id)
	require.NoError(t, err)
	_, _, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.hits)

	_, err = s.Put(ctx, id, Object{"a": value.Int(2)}, nil)
	require.NoError(t, err)
	obj, _, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), obj["a"].Interface())

	require.NoError(t, s.Remove(ctx, id))

	require.Len(t, pub.events, 3)
	assert.Equal(t, Event{Collection: "people", OID: id, Op: OpPut, Keys: []string{"a"}, Time: testEpoch}, pub.events[0])
	assert.Equal(t, OpRemove, pub.events[2].Op)
}
