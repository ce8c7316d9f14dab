package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "state.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	mr := miniredis.RunT(t)
	rs, err := OpenRedis(RedisConfig{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"redis":  rs,
		"memory": NewMemory(Counter{}),
	}
}

func TestStoreEmptyLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := s.Load(context.Background())
			require.NoError(t, err)
			require.Equal(t, Counter{}, c)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveAccumulated(ctx, 250000))
			require.NoError(t, s.SaveActivated(ctx, true))

			c, err := s.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, Counter{AccumulatedMs: 250000, Activated: true}, c)

			require.NoError(t, s.SaveActivated(ctx, false))
			c, err = s.Load(ctx)
			require.NoError(t, err)
			require.False(t, c.Activated)
		})
	}
}

func TestStoreAccumulatedNeverDecreases(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveAccumulated(ctx, 5000))
			require.NoError(t, s.SaveAccumulated(ctx, 3000))

			c, err := s.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(5000), c.AccumulatedMs)

			require.NoError(t, s.SaveAccumulated(ctx, 5001))
			c, err = s.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, int64(5001), c.AccumulatedMs)
		})
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := OpenBolt(path, "warranty")
	require.NoError(t, err)
	require.NoError(t, s.SaveAccumulated(ctx, 123456))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path, "warranty")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	c, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(123456), c.AccumulatedMs)
	require.False(t, c.Activated)
}

func TestRedisKeysUnderNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedis(RedisConfig{Addr: mr.Addr()}, "warranty")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	require.NoError(t, s.SaveAccumulated(ctx, 42))
	require.NoError(t, s.SaveActivated(ctx, true))

	got, err := mr.Get("warranty:accumulated_ms")
	require.NoError(t, err)
	require.Equal(t, "42", got)

	got, err = mr.Get("warranty:activated")
	require.NoError(t, err)
	require.Equal(t, "true", got)
}

func TestRedisCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedis(RedisConfig{Addr: mr.Addr()}, "warranty")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, mr.Set("warranty:activated", "maybe"))
	_, err = s.Load(context.Background())
	require.Error(t, err)
}

func TestOpenRedisUnreachable(t *testing.T) {
	_, err := OpenRedis(RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}, "")
	require.Error(t, err)
}

func TestMemoryStoreErrors(t *testing.T) {
	m := NewMemory(Counter{AccumulatedMs: 10})
	ctx := context.Background()

	boom := errors.New("disk full")
	m.SetSaveError(boom)
	require.ErrorIs(t, m.SaveAccumulated(ctx, 20), boom)
	require.Equal(t, int64(10), m.Counter().AccumulatedMs)

	m.SetSaveError(nil)
	require.NoError(t, m.SaveAccumulated(ctx, 20))
	require.Equal(t, 1, m.Saves)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.SaveActivated(ctx, true), ErrClosed)
	_, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
