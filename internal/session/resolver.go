package session

import (
	"time"

	"github.com/mode-relay-bot/internal/prompts"
)

// Snapshot is the state of the two prompt keys at the start of a turn.
// An empty string means the key is absent.
type Snapshot struct {
	Current  string
	Previous string
}

// Resolution is the outcome of resolving a turn
type Resolution struct {
	Mode         string
	SystemPrompt string
	Restart      bool
}

// Mutation is a store write the caller must apply after resolving
type Mutation struct {
	Key   string
	Value string
	TTL   time.Duration
}

// Resolver decides the active mode from a snapshot. It performs no I/O.
type Resolver struct {
	catalog    *prompts.Catalog
	sessionTTL time.Duration
}

// NewResolver creates a resolver; sessionTTL is the lifetime given to previous_prompt_key
func NewResolver(catalog *prompts.Catalog, sessionTTL time.Duration) *Resolver {
	return &Resolver{
		catalog:    catalog,
		sessionTTL: sessionTTL,
	}
}

// Resolve returns ok=false when neither key is present; the caller must then skip the LLM.
// Otherwise the returned mutations refresh previous_prompt_key with the resolved mode.
func (r *Resolver) Resolve(snap Snapshot) (Resolution, []Mutation, bool) {
	var res Resolution

	switch {
	case snap.Current == "" && snap.Previous == "":
		return Resolution{}, nil, false
	case snap.Current != "":
		// A missing previous key, or one naming another mode, starts a new conversation.
		res.Mode = snap.Current
		res.Restart = snap.Current != snap.Previous
	default:
		// The short-lived current marker expired but the session window is still open.
		res.Mode = snap.Previous
		res.Restart = false
	}

	res.SystemPrompt = r.catalog.Lookup(res.Mode)

	return res, []Mutation{{Key: PreviousPromptKey, Value: res.Mode, TTL: r.sessionTTL}}, true
}
