package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mode-relay-bot/internal/mode"
	"github.com/rs/zerolog"
)

// Manager applies mode commands and turn resolutions to a Store
type Manager struct {
	store    Store
	resolver *Resolver
	modeTTL  time.Duration
	logger   zerolog.Logger
}

// NewManager creates a session manager
func NewManager(store Store, resolver *Resolver, modeTTL time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		modeTTL:  modeTTL,
		logger:   logger.With().Str("component", "session").Logger(),
	}
}

// Arm selects m for the next message in scope and clears the previous mode,
// so the next resolution always restarts. Help leaves the state untouched.
func (m *Manager) Arm(ctx context.Context, scope string, selected mode.Mode) error {
	if !selected.Arms() {
		return nil
	}

	if err := m.store.Set(ctx, ScopedKey(scope, CurrentPromptKey), selected.Key(), m.modeTTL); err != nil {
		return fmt.Errorf("failed to set current prompt key: %w", err)
	}
	if err := m.store.Set(ctx, ScopedKey(scope, PreviousPromptKey), "", InvalidateTTL); err != nil {
		return fmt.Errorf("failed to invalidate previous prompt key: %w", err)
	}

	m.logger.Debug().
		Str("scope", scope).
		Str("mode", selected.Key()).
		Dur("ttl", m.modeTTL).
		Msg("Mode armed")

	return nil
}

// Resolve reads the prompt keys for scope, resolves the turn and writes back
// the refreshed session marker. ok is false when no mode is active.
func (m *Manager) Resolve(ctx context.Context, scope string) (Resolution, bool, error) {
	snap, err := m.snapshot(ctx, scope)
	if err != nil {
		return Resolution{}, false, err
	}

	res, mutations, ok := m.resolver.Resolve(snap)
	if !ok {
		return Resolution{}, false, nil
	}

	for _, mut := range mutations {
		if err := m.store.Set(ctx, ScopedKey(scope, mut.Key), mut.Value, mut.TTL); err != nil {
			return Resolution{}, false, fmt.Errorf("failed to write %s: %w", mut.Key, err)
		}
	}

	m.logger.Debug().
		Str("scope", scope).
		Str("mode", res.Mode).
		Bool("restart", res.Restart).
		Msg("Session resolved")

	return res, true, nil
}

// Active reports whether a mode is active in scope without touching the session
func (m *Manager) Active(ctx context.Context, scope string) (bool, error) {
	snap, err := m.snapshot(ctx, scope)
	if err != nil {
		return false, err
	}
	return snap.Current != "" || snap.Previous != "", nil
}

func (m *Manager) snapshot(ctx context.Context, scope string) (Snapshot, error) {
	current, _, err := lookup(ctx, m.store, ScopedKey(scope, CurrentPromptKey))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read current prompt key: %w", err)
	}
	previous, _, err := lookup(ctx, m.store, ScopedKey(scope, PreviousPromptKey))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read previous prompt key: %w", err)
	}
	return Snapshot{Current: current, Previous: previous}, nil
}
