package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mode-relay-bot/internal/session"
	"github.com/mode-relay-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ session.Store = (*Memory)(nil)
	_ session.Store = (*SQLite)(nil)
	_ Store         = (*storage.Client)(nil)
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSQLite(t *testing.T, c *clock) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err)
	s.now = c.now
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T, c *clock) Store{
		"memory": func(t *testing.T, c *clock) Store { return NewMemoryWithClock(c.now) },
		"sqlite": func(t *testing.T, c *clock) Store { return newSQLite(t, c) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("missing key is absent", func(t *testing.T) {
				s := build(t, &clock{t: time.Unix(1000, 0)})
				_, ok, err := s.Get(ctx, "nope")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("value expires after ttl", func(t *testing.T) {
				c := &clock{t: time.Unix(1000, 0)}
				s := build(t, c)

				require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
				c.advance(59 * time.Second)
				got, ok, err := s.Get(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "v", got)

				c.advance(time.Second)
				_, ok, err = s.Get(ctx, "k")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("set overwrites value and ttl", func(t *testing.T) {
				c := &clock{t: time.Unix(1000, 0)}
				s := build(t, c)

				require.NoError(t, s.Set(ctx, "k", "old", time.Second))
				require.NoError(t, s.Set(ctx, "k", "new", time.Hour))
				c.advance(time.Minute)

				got, ok, err := s.Get(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "new", got)
			})

			t.Run("zero ttl never expires", func(t *testing.T) {
				c := &clock{t: time.Unix(1000, 0)}
				s := build(t, c)

				require.NoError(t, s.Set(ctx, "k", "forever", 0))
				c.advance(24 * 365 * time.Hour)
				_, ok, err := s.Get(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("purge removes only expired keys", func(t *testing.T) {
				c := &clock{t: time.Unix(1000, 0)}
				s := build(t, c)

				require.NoError(t, s.Set(ctx, "short", "a", time.Second))
				require.NoError(t, s.Set(ctx, "long", "b", time.Hour))
				c.advance(time.Minute)

				n, err := s.PurgeExpired(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				_, ok, err := s.Get(ctx, "long")
				require.NoError(t, err)
				assert.True(t, ok)
			})
		})
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = NewStore(Options{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(Options{Type: "sqlite"})
	assert.ErrorContains(t, err, "sqlite path is required")

	_, err = NewStore(Options{Type: "supabase"})
	assert.ErrorContains(t, err, "supabase client is required")

	_, err = NewStore(Options{Type: "redis"})
	assert.ErrorContains(t, err, "unsupported storage type")
}
