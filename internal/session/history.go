package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// History is the rolling buffer of user utterances for a conversation
type History struct {
	store    Store
	capacity int
	ttl      time.Duration
}

// NewHistory creates a history buffer holding at most capacity entries
func NewHistory(store Store, capacity int, ttl time.Duration) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		store:    store,
		capacity: capacity,
		ttl:      ttl,
	}
}

// Record appends utterance to the buffer for scope and returns the buffer, oldest first.
// A restart replaces the buffer with the single new utterance.
func (h *History) Record(ctx context.Context, scope, utterance string, restart bool) ([]string, error) {
	key := ScopedKey(scope, ChatHistoryKey)

	var entries []string
	if !restart {
		loaded, err := h.load(ctx, key)
		if err != nil {
			return []string{utterance}, err
		}
		entries = loaded
	}

	entries = append(entries, utterance)
	if len(entries) > h.capacity {
		entries = entries[len(entries)-h.capacity:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return entries, fmt.Errorf("failed to encode chat history: %w", err)
	}
	if err := h.store.Set(ctx, key, string(data), h.ttl); err != nil {
		return entries, fmt.Errorf("failed to save chat history: %w", err)
	}

	return entries, nil
}

func (h *History) load(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := lookup(ctx, h.store, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// A corrupt buffer starts over rather than blocking the conversation.
		return nil, nil
	}
	return entries, nil
}
