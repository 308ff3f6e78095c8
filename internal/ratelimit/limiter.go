package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/metrics"

	"go.uber.org/zap"
)

// Limiter makes fixed-window allow/deny decisions. It holds no per-identifier
// state; every decision is a round-trip to the CounterStore, so any number of
// handler instances may share the same budget.
type Limiter struct {
	store     CounterStore
	keyPrefix string
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewLimiter creates a Limiter. keyPrefix namespaces counters in the store.
func NewLimiter(store CounterStore, keyPrefix string, registry *metrics.Registry, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:     store,
		keyPrefix: keyPrefix,
		metrics:   registry,
		logger:    logger,
	}
}

// Key returns the counter key for an identifier within a tier
func (l *Limiter) Key(tier domain.RateLimitTier, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", l.keyPrefix, tier, identifier)
}

// Check counts one request for identifier in tier against policy.
//
// The window is anchored at the first hit: expiry is set only when the
// increment returns 1, so later hits never extend it. Store failures allow
// the request.
func (l *Limiter) Check(ctx context.Context, tier domain.RateLimitTier, identifier string, policy domain.RateLimitPolicy) domain.RateLimitDecision {
	key := l.Key(tier, identifier)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		l.logger.Error("Rate limit store unavailable, allowing request",
			zap.Error(err),
			zap.String("key", key),
		)
		l.metrics.ObserveRateLimit(string(tier), metrics.DecisionFailOpen)
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests,
		}
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, policy.Window); err != nil {
			l.logger.Error("Failed to set rate limit window",
				zap.Error(err),
				zap.String("key", key),
			)
		}
	}

	if count > int64(policy.MaxRequests) {
		retryAfter := l.retryAfter(ctx, key, policy.Window)

		l.logger.Warn("Rate limit exceeded",
			zap.String("tier", string(tier)),
			zap.String("identifier", identifier),
			zap.Int64("count", count),
			zap.Int("limit", policy.MaxRequests),
			zap.Int("retry_after", retryAfter),
		)
		l.metrics.ObserveRateLimit(string(tier), metrics.DecisionDenied)

		return domain.RateLimitDecision{
			Allowed:           false,
			Limit:             policy.MaxRequests,
			Remaining:         0,
			RetryAfterSeconds: retryAfter,
		}
	}

	l.metrics.ObserveRateLimit(string(tier), metrics.DecisionAllowed)
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests - int(count),
	}
}

// retryAfter reports the whole seconds left in the window, falling back to
// the full window when the TTL cannot be read or is not positive.
func (l *Limiter) retryAfter(ctx context.Context, key string, window time.Duration) int {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		l.logger.Debug("Failed to read rate limit ttl", zap.Error(err), zap.String("key", key))
		return ceilSeconds(window)
	}

	if ttl <= 0 {
		// A counter left without expiry would deny forever; re-arm it.
		if err := l.store.Expire(ctx, key, window); err != nil {
			l.logger.Error("Failed to re-arm rate limit window", zap.Error(err), zap.String("key", key))
		}
		return ceilSeconds(window)
	}

	return ceilSeconds(ttl)
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
