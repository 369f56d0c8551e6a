package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mode-relay-bot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// restServer answers PostgREST calls with handler and records the last request
func restServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Range", "0-0/1")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "service-key", 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	client.now = func() time.Time { return testNow }
	return client
}

func TestGetFiltersExpiredRows(t *testing.T) {
	client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/"+kvTable), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "eq.telegram:1:2:current_prompt_key", q.Get("key"))
		assert.Equal(t, "gt."+testNow.Format(time.RFC3339Nano), q.Get("expires_at"))
		assert.Contains(t, q.Get("select"), "value")
		_, _ = w.Write([]byte(`[{"key":"telegram:1:2:current_prompt_key","value":"summarize","expires_at":"2026-03-01T12:01:00Z"}]`))
	})

	value, ok, err := client.Get(context.Background(), "telegram:1:2:current_prompt_key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "summarize", value)
}

func TestGetMissingKey(t *testing.T) {
	client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	value, ok, err := client.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestGetReturnsServerError(t *testing.T) {
	client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"kv_store\" does not exist"}`))
	})

	_, _, err := client.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestSetUpsertsWithExpiry(t *testing.T) {
	testCases := []struct {
		name string
		ttl  time.Duration
		want time.Time
	}{
		{name: "ttl", ttl: time.Minute, want: testNow.Add(time.Minute)},
		{name: "no expiry", ttl: 0, want: testNow.Add(noExpiry)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got kvRow
			client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.True(t, strings.HasSuffix(r.URL.Path, "/"+kvTable), r.URL.Path)
				assert.Equal(t, "key", r.URL.Query().Get("on_conflict"))
				assert.Contains(t, r.Header.Get("Prefer"), "merge-duplicates")
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(http.StatusCreated)
			})

			require.NoError(t, client.Set(context.Background(), "scope:chat_history", `["hi"]`, tc.ttl))
			assert.Equal(t, "scope:chat_history", got.Key)
			assert.Equal(t, `["hi"]`, got.Value)
			assert.True(t, tc.want.Equal(got.ExpiresAt), "expires_at %s", got.ExpiresAt)
		})
	}
}

func TestPurgeExpiredCountsDeletedRows(t *testing.T) {
	client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "lte."+testNow.Format(time.RFC3339Nano), r.URL.Query().Get("expires_at"))
		_, _ = w.Write([]byte(`[{"key":"a","value":"x","expires_at":"2026-03-01T11:00:00Z"},{"key":"b","value":"","expires_at":"2026-03-01T11:59:59Z"}]`))
	})

	removed, err := client.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestLogRequestWritesRow(t *testing.T) {
	var got map[string]interface{}
	client := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/"+requestLogsTable), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	record := &models.RequestLog{
		Platform:        "discord",
		ChatID:          "c1",
		UserID:          "u1",
		Mode:            "translate",
		Restart:         true,
		RequestText:     "hola",
		ResponseText:    "hello",
		ModelUsed:       "llama2-chat-7b",
		ResponseLength:  5,
		ChunkCount:      1,
		ExecutionTimeMs: 42,
	}
	require.NoError(t, client.LogRequest(context.Background(), record))

	assert.NotEmpty(t, record.ID)
	assert.True(t, testNow.Equal(record.CreatedAt))
	assert.Equal(t, record.ID, got["id"])
	assert.Equal(t, "discord", got["platform"])
	assert.Equal(t, "translate", got["mode"])
	assert.Equal(t, true, got["restart"])
	assert.Equal(t, "hello", got["response_text"])
	assert.Equal(t, float64(42), got["execution_time_ms"])
}
