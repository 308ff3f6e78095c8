package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/service"

	"go.uber.org/zap"
)

// RateLimiter decides whether one more request fits an identifier's budget
type RateLimiter interface {
	Check(ctx context.Context, tier domain.RateLimitTier, identifier string, policy domain.RateLimitPolicy) domain.RateLimitDecision
}

// ClientIP resolves the network identifier of a request the same way the
// purchase path does.
func ClientIP(r *http.Request) string {
	return service.ResolveClientIP(domain.PurchaseRequest{
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
	})
}

// WriteRateLimitHeaders exposes a decision to the client. Denials also carry
// Retry-After and a reset timestamp.
func WriteRateLimitHeaders(w http.ResponseWriter, decision domain.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	if !decision.Allowed {
		reset := time.Now().Add(time.Duration(decision.RetryAfterSeconds) * time.Second)
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
	}
}

// RespondRateLimited writes the 429 envelope for a denied decision
func RespondRateLimited(w http.ResponseWriter, decision domain.RateLimitDecision) {
	WriteRateLimitHeaders(w, decision)
	RespondWithErrorDetails(w, http.StatusTooManyRequests, "rate limit exceeded", map[string]interface{}{
		"retryAfter": decision.RetryAfterSeconds,
	})
}

// RateLimitMiddleware applies a fixed-window budget per client address to
// every request of the wrapped routes.
func RateLimitMiddleware(limiter RateLimiter, tier domain.RateLimitTier, policy domain.RateLimitPolicy, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)

			decision := limiter.Check(r.Context(), tier, clientIP, policy)
			if !decision.Allowed {
				logger.Debug("Request rejected by rate limiter",
					zap.String("tier", string(tier)),
					zap.String("client_ip", clientIP),
					zap.String("path", r.URL.Path),
				)
				RespondRateLimited(w, decision)
				return
			}

			WriteRateLimitHeaders(w, decision)
			next.ServeHTTP(w, r)
		})
	}
}
