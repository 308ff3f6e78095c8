package service

import (
	"context"
	"strings"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/events"
	"flash-sale/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// AnonymousUser is the user identifier when the request names none.
	AnonymousUser = "anonymous"
	// UnknownClientIP is the network identifier when no address header is set.
	UnknownClientIP = "unknown"

	publishTimeout = 500 * time.Millisecond
)

// RateLimiter decides whether one more request fits an identifier's budget
type RateLimiter interface {
	Check(ctx context.Context, tier domain.RateLimitTier, identifier string, policy domain.RateLimitPolicy) domain.RateLimitDecision
}

// PurchaseService is the request-facing unit: identifier resolution, tiered
// rate limiting, then the inventory transaction.
type PurchaseService interface {
	HandlePurchase(ctx context.Context, req domain.PurchaseRequest, userPolicy domain.RateLimitPolicy) (*domain.PurchaseResult, error)
}

type purchaseService struct {
	inventory InventoryService
	limiter   RateLimiter
	ipPolicy  domain.RateLimitPolicy
	publisher events.Publisher
	metrics   *metrics.Registry
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewPurchaseService creates a new instance of PurchaseService. ipPolicy is
// the fixed budget applied per client address after the user tier passes.
func NewPurchaseService(
	inventory InventoryService,
	limiter RateLimiter,
	ipPolicy domain.RateLimitPolicy,
	publisher events.Publisher,
	registry *metrics.Registry,
	logger *zap.Logger,
) PurchaseService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &purchaseService{
		inventory: inventory,
		limiter:   limiter,
		ipPolicy:  ipPolicy,
		publisher: publisher,
		metrics:   registry,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

func (s *purchaseService) HandlePurchase(ctx context.Context, req domain.PurchaseRequest, userPolicy domain.RateLimitPolicy) (*domain.PurchaseResult, error) {
	if req.ProductID <= 0 {
		return nil, ErrInvalidProductID
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	userID := ResolveUserID(req)
	clientIP := ResolveClientIP(req)

	ctx, span := s.tracer.Start(ctx, "purchase.Handle", trace.WithAttributes(
		attribute.Int64("product.id", req.ProductID),
		attribute.String("client.ip", clientIP),
	))
	defer span.End()

	userDecision := s.limiter.Check(ctx, domain.TierUser, userID, userPolicy)
	if !userDecision.Allowed {
		s.metrics.ObservePurchase(string(domain.PurchaseRateLimited))
		span.SetAttributes(attribute.String("purchase.status", "rate_limited_user"))
		return domain.RateLimitedResult(domain.TierUser, userDecision), nil
	}

	ipDecision := s.limiter.Check(ctx, domain.TierIP, clientIP, s.ipPolicy)
	if !ipDecision.Allowed {
		s.metrics.ObservePurchase(string(domain.PurchaseRateLimited))
		span.SetAttributes(attribute.String("purchase.status", "rate_limited_ip"))
		return domain.RateLimitedResult(domain.TierIP, ipDecision), nil
	}

	result, err := s.inventory.Purchase(ctx, req.ProductID, req.Quantity, userID)
	if err != nil {
		return nil, err
	}
	result.UserLimit = &userDecision

	if result.Status == domain.PurchaseSold {
		s.notify(ctx, events.NewPurchaseEvent(result.Order, result.RemainingStock))
	}

	return result, nil
}

// notify publishes on a detached context so a disconnecting client cannot
// cancel the notification of a sale that already committed.
func (s *purchaseService) notify(ctx context.Context, event events.PurchaseEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishPurchase(ctx, event); err != nil {
		s.logger.Warn("Failed to publish purchase event",
			zap.Error(err),
			zap.String("order_id", event.OrderID.String()),
		)
	}
}

// ResolveUserID picks the body field, then the query parameter, then the
// anonymous marker.
func ResolveUserID(req domain.PurchaseRequest) string {
	if id := strings.TrimSpace(req.UserID); id != "" {
		return id
	}
	if id := strings.TrimSpace(req.QueryUserID); id != "" {
		return id
	}
	return AnonymousUser
}

// ResolveClientIP picks the first X-Forwarded-For hop, then X-Real-IP, then
// the unknown marker.
func ResolveClientIP(req domain.PurchaseRequest) string {
	if req.ForwardedFor != "" {
		first, _, _ := strings.Cut(req.ForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.RealIP); ip != "" {
		return ip
	}
	return UnknownClientIP
}
