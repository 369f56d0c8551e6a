// Package session tracks which assistant mode a conversation is in.
//
// State lives entirely in an expiring key-value store: a short-lived
// current_prompt_key armed by mode commands, a longer previous_prompt_key
// refreshed on every resolved turn, and a bounded chat_history buffer.
package session

import (
	"context"
	"time"
)

// Keys written by the session package
const (
	CurrentPromptKey  = "current_prompt_key"
	PreviousPromptKey = "previous_prompt_key"
	ChatHistoryKey    = "chat_history"
)

// InvalidateTTL is the lifetime of the empty value written to clear previous_prompt_key
const InvalidateTTL = time.Second

// Store is an expiring string key-value store
type Store interface {
	// Get returns the value stored under key; ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. A ttl <= 0 means the value never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ScopedKey namespaces key by a conversation scope
func ScopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + ":" + key
}

// lookup reads key and treats an empty value as absent
func lookup(ctx context.Context, store Store, key string) (string, bool, error) {
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}
