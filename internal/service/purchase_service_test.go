package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/metrics"
	"flash-sale/internal/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingInventory wraps an InventoryService and counts engine invocations
type countingInventory struct {
	InventoryService
	mu    sync.Mutex
	calls int
	users []string
	err   error
}

func (c *countingInventory) Purchase(ctx context.Context, productID int64, quantity int, userID string) (*domain.PurchaseResult, error) {
	c.mu.Lock()
	c.calls++
	c.users = append(c.users, userID)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.InventoryService.Purchase(ctx, productID, quantity, userID)
}

type purchaseFixture struct {
	svc       PurchaseService
	store     *memStore
	inventory *countingInventory
	publisher *recordingPublisher
	redis     *miniredis.Miniredis
}

func newPurchaseFixture(t *testing.T, ipPolicy domain.RateLimitPolicy) *purchaseFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	store.addProduct(1, "Console", 100, "10.00")

	registry := metrics.NewRegistry()
	inventory := &countingInventory{InventoryService: NewInventoryService(store, memProducts{store: store}, registry, zap.NewNop())}
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(client), "ratelimit:purchase", registry, zap.NewNop())
	publisher := &recordingPublisher{}

	return &purchaseFixture{
		svc:       NewPurchaseService(inventory, limiter, ipPolicy, publisher, registry, zap.NewNop()),
		store:     store,
		inventory: inventory,
		publisher: publisher,
		redis:     mr,
	}
}

var (
	userPolicy  = domain.RateLimitPolicy{MaxRequests: 5, Window: 60 * time.Second}
	loosePolicy = domain.RateLimitPolicy{MaxRequests: 1000, Window: 60 * time.Second}
)

func TestPurchaseService_SixthRequestFromUserIsDenied(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := f.svc.HandlePurchase(ctx, domain.PurchaseRequest{
			ProductID:    1,
			Quantity:     1,
			UserID:       "alice",
			ForwardedFor: fmt.Sprintf("10.0.0.%d", i+1),
		}, userPolicy)
		require.NoError(t, err)
		require.Equal(t, domain.PurchaseSold, res.Status, "request %d", i+1)
		require.NotNil(t, res.UserLimit)
		assert.Equal(t, 5-(i+1), res.UserLimit.Remaining)
	}

	res, err := f.svc.HandlePurchase(ctx, domain.PurchaseRequest{
		ProductID:    1,
		Quantity:     1,
		UserID:       "alice",
		ForwardedFor: "10.0.0.6",
	}, userPolicy)

	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseRateLimited, res.Status)
	require.NotNil(t, res.RateLimit)
	assert.Equal(t, domain.TierUser, res.RateLimit.Tier)
	assert.Equal(t, 5, res.RateLimit.Limit)
	assert.Greater(t, res.RateLimit.RetryAfterSeconds, 0)
	assert.Equal(t, 5, f.inventory.calls)
	assert.Equal(t, 95, f.store.stockOf(1))
}

func TestPurchaseService_UserTierShortCircuitsIPTier(t *testing.T) {
	f := newPurchaseFixture(t, domain.RateLimitPolicy{MaxRequests: 3, Window: time.Minute})
	ctx := context.Background()
	tight := domain.RateLimitPolicy{MaxRequests: 1, Window: time.Minute}
	req := domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: "bob", ForwardedFor: "192.0.2.10"}

	_, err := f.svc.HandlePurchase(ctx, req, tight)
	require.NoError(t, err)

	res, err := f.svc.HandlePurchase(ctx, req, tight)
	require.NoError(t, err)
	assert.Equal(t, domain.TierUser, res.RateLimit.Tier)

	// The denied request never touched the IP counter.
	count, err := f.redis.Get("ratelimit:purchase:ip:192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestPurchaseService_IPTierDeniesAcrossUsers(t *testing.T) {
	f := newPurchaseFixture(t, domain.RateLimitPolicy{MaxRequests: 2, Window: 30 * time.Second})
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		res, err := f.svc.HandlePurchase(ctx, domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: user, RealIP: "198.51.100.7"}, userPolicy)
		require.NoError(t, err)
		require.Equal(t, domain.PurchaseSold, res.Status)
	}

	res, err := f.svc.HandlePurchase(ctx, domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: "u3", RealIP: "198.51.100.7"}, userPolicy)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseRateLimited, res.Status)
	assert.Equal(t, domain.TierIP, res.RateLimit.Tier)
	assert.Equal(t, 2, res.RateLimit.Limit)
	assert.Equal(t, 30, res.RateLimit.RetryAfterSeconds)
	assert.Equal(t, 2, f.inventory.calls)
}

func TestPurchaseService_FailsOpenWithoutRedis(t *testing.T) {
	f := newPurchaseFixture(t, domain.RateLimitPolicy{MaxRequests: 1, Window: time.Minute})
	f.redis.Close()

	for i := 0; i < 3; i++ {
		res, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: "carol"}, domain.RateLimitPolicy{MaxRequests: 1, Window: time.Minute})
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseSold, res.Status)
	}
}

func TestPurchaseService_PublishesOnlySales(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)
	ctx := context.Background()

	_, err := f.svc.HandlePurchase(ctx, domain.PurchaseRequest{ProductID: 1, Quantity: 2, UserID: "dave"}, loosePolicy)
	require.NoError(t, err)
	_, err = f.svc.HandlePurchase(ctx, domain.PurchaseRequest{ProductID: 1, Quantity: 500, UserID: "dave"}, loosePolicy)
	require.NoError(t, err)
	_, err = f.svc.HandlePurchase(ctx, domain.PurchaseRequest{ProductID: 404, Quantity: 1, UserID: "dave"}, loosePolicy)
	require.NoError(t, err)

	require.Equal(t, 1, f.publisher.count())
	event := f.publisher.events[0]
	assert.Equal(t, "dave", event.UserID)
	assert.Equal(t, 2, event.Quantity)
	assert.Equal(t, 98, event.RemainingStock)
}

func TestPurchaseService_PublishFailureDoesNotFailSale(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)
	f.publisher.err = errors.New("redis down")

	res, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: "erin"}, loosePolicy)

	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseSold, res.Status)
}

func TestPurchaseService_EngineErrorPropagates(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)
	f.inventory.err = errors.New("storage fault")

	res, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 1}, loosePolicy)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, f.inventory.err)
}

func TestPurchaseService_ValidationHappensBeforeRateLimiting(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)

	_, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 0, UserID: "frank"}, userPolicy)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: -1, Quantity: 1, UserID: "frank"}, userPolicy)
	assert.ErrorIs(t, err, ErrInvalidProductID)

	assert.False(t, f.redis.Exists("ratelimit:purchase:user:frank"))
	assert.Equal(t, 0, f.inventory.calls)
}

func TestPurchaseService_AnonymousUsersShareABudget(t *testing.T) {
	f := newPurchaseFixture(t, loosePolicy)
	tight := domain.RateLimitPolicy{MaxRequests: 1, Window: time.Minute}

	_, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 1}, tight)
	require.NoError(t, err)
	res, err := f.svc.HandlePurchase(context.Background(), domain.PurchaseRequest{ProductID: 1, Quantity: 1, UserID: "  "}, tight)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseRateLimited, res.Status)
	assert.Equal(t, []string{AnonymousUser}, f.inventory.users)
}

func TestResolveUserID(t *testing.T) {
	tests := []struct {
		name string
		req  domain.PurchaseRequest
		want string
	}{
		{"body wins", domain.PurchaseRequest{UserID: "body", QueryUserID: "query"}, "body"},
		{"query fallback", domain.PurchaseRequest{QueryUserID: "query"}, "query"},
		{"blank body ignored", domain.PurchaseRequest{UserID: " ", QueryUserID: "query"}, "query"},
		{"anonymous", domain.PurchaseRequest{}, AnonymousUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveUserID(tt.req))
		})
	}
}

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name string
		req  domain.PurchaseRequest
		want string
	}{
		{"first forwarded hop", domain.PurchaseRequest{ForwardedFor: "203.0.113.5, 10.0.0.1, 10.0.0.2", RealIP: "10.9.9.9"}, "203.0.113.5"},
		{"single forwarded", domain.PurchaseRequest{ForwardedFor: " 203.0.113.9 "}, "203.0.113.9"},
		{"real ip fallback", domain.PurchaseRequest{RealIP: "198.51.100.1"}, "198.51.100.1"},
		{"empty first hop falls through", domain.PurchaseRequest{ForwardedFor: " ,10.0.0.1", RealIP: "198.51.100.2"}, "198.51.100.2"},
		{"unknown", domain.PurchaseRequest{}, UnknownClientIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveClientIP(tt.req))
		})
	}
}
