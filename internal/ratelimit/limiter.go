package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mode-relay-bot/internal/models"
	"github.com/mode-relay-bot/internal/session"
	"github.com/rs/zerolog"
)

// Limiter manages daily turn limits for users
type Limiter struct {
	store      session.Store
	timezone   *time.Location
	dailyLimit int
	now        func() time.Time
	logger     zerolog.Logger
}

// NewLimiter creates a new rate limiter. A dailyLimit of zero disables limiting.
func NewLimiter(store session.Store, timezone string, dailyLimit int, logger zerolog.Logger) (*Limiter, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	return &Limiter{
		store:      store,
		timezone:   loc,
		dailyLimit: dailyLimit,
		now:        time.Now,
		logger:     logger.With().Str("component", "ratelimit").Logger(),
	}, nil
}

// Enabled reports whether a daily limit is configured
func (l *Limiter) Enabled() bool {
	return l.dailyLimit > 0
}

func (l *Limiter) counterKey(user string, now time.Time) string {
	return "turns:" + user + ":" + now.Format("2006-01-02")
}

func (l *Limiter) used(ctx context.Context, key string) (int, error) {
	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		l.logger.Warn().Str("key", key).Str("value", value).Msg("Corrupt turn counter, treating as zero")
		return 0, nil
	}
	return count, nil
}

// CheckLimit checks if user can make another turn today
func (l *Limiter) CheckLimit(ctx context.Context, user string) (*models.RateLimitResult, error) {
	if !l.Enabled() {
		return &models.RateLimitResult{Allowed: true, Remaining: -1}, nil
	}

	now := l.now().In(l.timezone)
	key := l.counterKey(user, now)

	used, err := l.used(ctx, key)
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("user", user).
			Msg("Failed to get daily usage")
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}

	remaining := l.dailyLimit - used

	l.logger.Debug().
		Str("user", user).
		Int("used", used).
		Int("remaining", remaining).
		Msg("Checking rate limit")

	if remaining <= 0 {
		return &models.RateLimitResult{
			Allowed:   false,
			Used:      used,
			Remaining: 0,
			Message: fmt.Sprintf(
				"You have used all %d requests for today. The limit resets in %d h.",
				l.dailyLimit, l.hoursUntilMidnight(now),
			),
		}, nil
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Used:      used,
		Remaining: remaining,
	}, nil
}

// IncrementUsage counts one more turn for the user today
func (l *Limiter) IncrementUsage(ctx context.Context, user string) error {
	if !l.Enabled() {
		return nil
	}

	now := l.now().In(l.timezone)
	key := l.counterKey(user, now)

	used, err := l.used(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	if err := l.store.Set(ctx, key, strconv.Itoa(used+1), l.untilMidnight(now)); err != nil {
		l.logger.Error().
			Err(err).
			Str("user", user).
			Msg("Failed to increment usage")
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	l.logger.Debug().
		Str("user", user).
		Int("used", used+1).
		Msg("Usage incremented")

	return nil
}

func (l *Limiter) untilMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, l.timezone)
	return midnight.Sub(now)
}

// hoursUntilMidnight calculates hours until midnight in the timezone
func (l *Limiter) hoursUntilMidnight(now time.Time) int {
	hours := int(l.untilMidnight(now).Hours())

	// If less than 1 hour, show at least 1
	if hours < 1 {
		hours = 1
	}

	return hours
}
