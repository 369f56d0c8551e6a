package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// noExpiry stands in for "never expires" since kv_store.expires_at is NOT NULL
const noExpiry = 100 * 365 * 24 * time.Hour

type kvRow struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves an unexpired value from the kv_store table
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, _, err := c.client.From(kvTable).
		Select("key,value,expires_at", "", false).
		Eq("key", key).
		Gt("expires_at", c.now().UTC().Format(time.RFC3339Nano)).
		Execute()
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var rows []kvRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", false, fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}

	return rows[0].Value, true, nil
}

// Set upserts a value into the kv_store table
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if ttl <= 0 {
		ttl = noExpiry
	}
	row := kvRow{
		Key:       key,
		Value:     value,
		ExpiresAt: c.now().UTC().Add(ttl),
	}

	_, _, err := c.client.From(kvTable).
		Insert(row, true, "key", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

// PurgeExpired deletes expired rows from the kv_store table
func (c *Client) PurgeExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var removed int
	err := c.withRetry(ctx, "purge_expired", func() error {
		data, _, err := c.client.From(kvTable).
			Delete("representation", "").
			Lte("expires_at", c.now().UTC().Format(time.RFC3339Nano)).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to delete expired keys: %w", err)
		}

		var rows []kvRow
		if err := json.Unmarshal(data, &rows); err == nil {
			removed = len(rows)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.logger.Debug().Int("removed", removed).Msg("Expired keys purged")
	return removed, nil
}
