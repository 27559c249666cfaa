package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	data map[string]json.RawMessage
	gets int
	err  error
}

func (m *mapCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.gets++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, key string, payload json.RawMessage, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = payload
	return nil
}

func TestKeyForIsStablePerDay(t *testing.T) {
	t.Parallel()

	morning := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 5, 2, 0, 0, 1, 0, time.UTC)

	key := KeyFor("q", "m", morning)
	assert.Len(t, key, 32)
	assert.Equal(t, key, KeyFor("q", "m", evening))
	assert.NotEqual(t, key, KeyFor("q", "m", nextDay))
	assert.NotEqual(t, key, KeyFor("q", "other", morning))

	// md5("q:m:2026-05-01")
	assert.Equal(t, "d61f8f7f931eeb571bca6d72c706a20d", key)

	// Local times map to their UTC day.
	loc := time.FixedZone("UTC+5", 5*60*60)
	local := time.Date(2026, 5, 2, 3, 0, 0, 0, loc)
	assert.Equal(t, key, KeyFor("q", "m", local))
}

func TestLRUFrontsStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &mapCache{data: map[string]json.RawMessage{}}
	front, err := NewLRU(store, 2)
	require.NoError(t, err)

	require.NoError(t, front.Put(ctx, "a", json.RawMessage(`1`), time.Hour))
	assert.Equal(t, json.RawMessage(`1`), store.data["a"])

	got, ok, err := front.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, json.RawMessage(`1`), got)
	assert.Zero(t, store.gets)

	store.data["b"] = json.RawMessage(`2`)
	got, ok, err = front.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, json.RawMessage(`2`), got)
	assert.Equal(t, 1, store.gets)
}

func TestLRUDropsExpiredEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &mapCache{data: map[string]json.RawMessage{}}
	front, err := NewLRU(store, 0)
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	front.now = func() time.Time { return now }
	require.NoError(t, front.Put(ctx, "a", json.RawMessage(`1`), time.Minute))
	delete(store.data, "a")

	now = now.Add(2 * time.Minute)
	_, ok, err := front.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.gets)
}

func TestLRUPutFailureIsNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &mapCache{data: map[string]json.RawMessage{}, err: errors.New("db down")}
	front, err := NewLRU(store, 4)
	require.NoError(t, err)

	require.Error(t, front.Put(ctx, "a", json.RawMessage(`1`), time.Hour))
	_, ok, err := front.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
