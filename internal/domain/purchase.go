package domain

import "time"

// PurchaseStatus tags the outcome of a purchase attempt. Only infrastructure
// faults and malformed input travel as errors; everything here is a result.
type PurchaseStatus string

const (
	PurchaseSold        PurchaseStatus = "sold"
	PurchaseOutOfStock  PurchaseStatus = "out_of_stock"
	PurchaseNotFound    PurchaseStatus = "not_found"
	PurchaseRateLimited PurchaseStatus = "rate_limited"
)

// RateLimitTier names the counter family a decision was taken against
type RateLimitTier string

const (
	TierUser  RateLimitTier = "user"
	TierIP    RateLimitTier = "ip"
	TierStock RateLimitTier = "stock"
)

// RateLimitPolicy is a fixed-window budget
type RateLimitPolicy struct {
	MaxRequests int
	Window      time.Duration
}

// PurchaseRequest carries the raw identifiers as they arrived on the wire;
// the orchestrator resolves them.
type PurchaseRequest struct {
	ProductID    int64
	Quantity     int
	UserID       string
	QueryUserID  string
	ForwardedFor string
	RealIP       string
}

// RateLimitRejection describes which tier denied a request
type RateLimitRejection struct {
	Tier              RateLimitTier
	Limit             int
	RetryAfterSeconds int
}

// PurchaseResult is the tagged result of a purchase attempt
type PurchaseResult struct {
	Status         PurchaseStatus
	Order          *Order
	ProductName    string
	RemainingStock int
	RateLimit      *RateLimitRejection
	// UserLimit is the user-tier decision when the request reached the engine.
	UserLimit *RateLimitDecision
}

// RateLimitDecision is the allow/deny answer for one identifier
type RateLimitDecision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
}

func SoldResult(order *Order, productName string, remaining int) *PurchaseResult {
	return &PurchaseResult{
		Status:         PurchaseSold,
		Order:          order,
		ProductName:    productName,
		RemainingStock: remaining,
	}
}

func OutOfStockResult(productName string, stock int) *PurchaseResult {
	return &PurchaseResult{
		Status:         PurchaseOutOfStock,
		ProductName:    productName,
		RemainingStock: stock,
	}
}

func NotFoundResult() *PurchaseResult {
	return &PurchaseResult{Status: PurchaseNotFound}
}

func RateLimitedResult(tier RateLimitTier, decision RateLimitDecision) *PurchaseResult {
	return &PurchaseResult{
		Status: PurchaseRateLimited,
		RateLimit: &RateLimitRejection{
			Tier:              tier,
			Limit:             decision.Limit,
			RetryAfterSeconds: decision.RetryAfterSeconds,
		},
	}
}
