package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mode-relay-bot/internal/kvstore"
	"github.com/mode-relay-bot/internal/mode"
	"github.com/mode-relay-bot/internal/prompts"
	"github.com/mode-relay-bot/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	modeTTL    = 60 * time.Second
	sessionTTL = 300 * time.Second
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newManager(t *testing.T) (*session.Manager, *kvstore.Memory, *clock) {
	t.Helper()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	store := kvstore.NewMemoryWithClock(c.now)
	resolver := session.NewResolver(prompts.Default(), sessionTTL)
	return session.NewManager(store, resolver, modeTTL, zerolog.Nop()), store, c
}

func TestResolverCaseTable(t *testing.T) {
	r := session.NewResolver(prompts.Default(), sessionTTL)
	summarize := prompts.Default().Lookup("summarize")
	code := prompts.Default().Lookup("code")

	testCases := []struct {
		name    string
		snap    session.Snapshot
		wantOK  bool
		want    session.Resolution
		comment string
	}{
		{
			name:   "both absent",
			snap:   session.Snapshot{},
			wantOK: false,
		},
		{
			name:   "current equals previous continues",
			snap:   session.Snapshot{Current: "summarize", Previous: "summarize"},
			wantOK: true,
			want:   session.Resolution{Mode: "summarize", SystemPrompt: summarize, Restart: false},
		},
		{
			name:   "current differs from previous restarts",
			snap:   session.Snapshot{Current: "code", Previous: "summarize"},
			wantOK: true,
			want:   session.Resolution{Mode: "code", SystemPrompt: code, Restart: true},
		},
		{
			name:   "current only restarts",
			snap:   session.Snapshot{Current: "code"},
			wantOK: true,
			want:   session.Resolution{Mode: "code", SystemPrompt: code, Restart: true},
		},
		{
			name:   "previous only continues",
			snap:   session.Snapshot{Previous: "summarize"},
			wantOK: true,
			want:   session.Resolution{Mode: "summarize", SystemPrompt: summarize, Restart: false},
		},
		{
			name:   "unknown mode yields empty prompt",
			snap:   session.Snapshot{Current: "bogus"},
			wantOK: true,
			want:   session.Resolution{Mode: "bogus", SystemPrompt: "", Restart: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, mutations, ok := r.Resolve(tc.snap)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				assert.Empty(t, mutations)
				return
			}
			assert.Equal(t, tc.want, res)
			assert.Equal(t, []session.Mutation{{Key: session.PreviousPromptKey, Value: tc.want.Mode, TTL: sessionTTL}}, mutations)
		})
	}
}

func TestManagerNoSessionWithoutMode(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	_, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, exists, err := store.Get(ctx, session.ScopedKey("scope", session.PreviousPromptKey))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManagerActiveDoesNotMutate(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	active, err := m.Active(ctx, "scope")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, m.Arm(ctx, "scope", mode.Code))
	active, err = m.Active(ctx, "scope")
	require.NoError(t, err)
	assert.True(t, active)

	previous, _, err := store.Get(ctx, session.ScopedKey("scope", session.PreviousPromptKey))
	require.NoError(t, err)
	assert.Empty(t, previous)

	res, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.Restart)
}

func TestManagerArmThenResolveRestartsThenContinues(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "scope", mode.Summarize))

	first, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summarize", first.Mode)
	assert.True(t, first.Restart)

	second, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summarize", second.Mode)
	assert.False(t, second.Restart)
}

func TestManagerRearmingSameModeRestarts(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "scope", mode.Code))
	_, _, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)

	require.NoError(t, m.Arm(ctx, "scope", mode.Code))
	res, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.Restart)
}

func TestManagerContinuesAfterModeMarkerExpires(t *testing.T) {
	m, _, c := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "scope", mode.Translate))
	_, _, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)

	c.advance(modeTTL + time.Second)

	res, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "translate", res.Mode)
	assert.False(t, res.Restart)
}

func TestManagerSessionSlidesWhileTurnsArrive(t *testing.T) {
	m, _, c := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "scope", mode.QA))
	for i := 0; i < 5; i++ {
		_, ok, err := m.Resolve(ctx, "scope")
		require.NoError(t, err)
		require.True(t, ok)
		c.advance(sessionTTL - time.Second)
	}

	c.advance(sessionTTL)
	_, ok, err := m.Resolve(ctx, "scope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerHelpDoesNotMutate(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "scope", mode.Help))

	_, ok, err := store.Get(ctx, session.ScopedKey("scope", session.CurrentPromptKey))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, session.ScopedKey("scope", session.PreviousPromptKey))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerScopesAreIndependent(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Arm(ctx, "alice", mode.Medical))

	_, ok, err := m.Resolve(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	res, ok, err := m.Resolve(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "medical", res.Mode)
}

func TestManagerUnknownModeInStore(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, session.CurrentPromptKey, "bogus", modeTTL))

	res, ok, err := m.Resolve(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.Resolution{Mode: "bogus", SystemPrompt: "", Restart: true}, res)
}

type failingStore struct {
	getErr error
	setErr error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }

func (f failingStore) Set(context.Context, string, string, time.Duration) error { return f.setErr }

func TestManagerSurfacesStoreErrors(t *testing.T) {
	boom := errors.New("store down")
	resolver := session.NewResolver(prompts.Default(), sessionTTL)
	ctx := context.Background()

	m := session.NewManager(failingStore{getErr: boom}, resolver, modeTTL, zerolog.Nop())
	_, _, err := m.Resolve(ctx, "scope")
	assert.ErrorIs(t, err, boom)

	m = session.NewManager(failingStore{setErr: boom}, resolver, modeTTL, zerolog.Nop())
	assert.ErrorIs(t, m.Arm(ctx, "scope", mode.Code), boom)
}

func TestHistoryKeepsLastEightInOrder(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	store := kvstore.NewMemoryWithClock(c.now)
	h := session.NewHistory(store, 8, 300*time.Second)
	ctx := context.Background()

	entries, err := h.Record(ctx, "scope", "turn-0", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"turn-0"}, entries)

	for i := 1; i <= 9; i++ {
		entries, err = h.Record(ctx, "scope", fmt.Sprintf("turn-%d", i), false)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(entries), 8)
	}

	want := []string{"turn-2", "turn-3", "turn-4", "turn-5", "turn-6", "turn-7", "turn-8", "turn-9"}
	assert.Equal(t, want, entries)

	// Reading back through the store gives the same buffer.
	entries, err = h.Record(ctx, "scope", "turn-10", false)
	require.NoError(t, err)
	assert.Equal(t, append(want[1:], "turn-10"), entries)
}

func TestHistoryRestartResets(t *testing.T) {
	store := kvstore.NewMemory()
	h := session.NewHistory(store, 8, time.Minute)
	ctx := context.Background()

	_, err := h.Record(ctx, "scope", "a", true)
	require.NoError(t, err)
	_, err = h.Record(ctx, "scope", "b", false)
	require.NoError(t, err)

	entries, err := h.Record(ctx, "scope", "c", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, entries)
}

func TestHistoryExpires(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	store := kvstore.NewMemoryWithClock(c.now)
	h := session.NewHistory(store, 8, time.Minute)
	ctx := context.Background()

	_, err := h.Record(ctx, "scope", "a", true)
	require.NoError(t, err)
	c.advance(2 * time.Minute)

	entries, err := h.Record(ctx, "scope", "b", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, entries)
}

func TestHistoryIgnoresCorruptBuffer(t *testing.T) {
	store := kvstore.NewMemory()
	h := session.NewHistory(store, 8, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, session.ScopedKey("scope", session.ChatHistoryKey), "{not json", time.Minute))

	entries, err := h.Record(ctx, "scope", "fresh", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, entries)
}
