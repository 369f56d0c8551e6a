package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mode-relay-bot/internal/models"
)

// Store is an expiring key-value backend usable for session state
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

// Options contains configuration options for the store
type Options struct {
	Type       string // "memory", "sqlite" or "supabase"
	SQLitePath string
	Supabase   Store // Required for "supabase"
}

// NewStore creates a store based on options
func NewStore(opts Options) (Store, error) {
	switch opts.Type {
	case "", models.StoreMemory:
		return NewMemory(), nil
	case models.StoreSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required for sqlite storage")
		}
		return OpenSQLite(opts.SQLitePath)
	case models.StoreSupabase:
		if opts.Supabase == nil {
			return nil, fmt.Errorf("supabase client is required for supabase storage")
		}
		return opts.Supabase, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", opts.Type)
	}
}
