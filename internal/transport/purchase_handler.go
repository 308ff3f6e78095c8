package transport

import (
	"errors"
	"net/http"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/middleware"
	"flash-sale/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const outOfStockMessage = "Out of stock"

// PurchaseRequest represents the purchase request payload
type PurchaseRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	UserID    string `json:"userId" validate:"max=128"`
	Quantity  *int   `json:"quantity,omitempty" validate:"omitempty,gte=1,lte=1000"`
}

// PurchaseResponse is returned for every executed purchase, sold or not
type PurchaseResponse struct {
	Success bool          `json:"success"`
	Order   *OrderSummary `json:"order,omitempty"`
	Message string        `json:"message,omitempty"`
}

// OrderSummary describes a committed order together with the stock left
type OrderSummary struct {
	ID             string          `json:"id"`
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	Quantity       int             `json:"quantity"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	RemainingStock int             `json:"remainingStock"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// PurchaseHandler handles HTTP requests for the purchase path
type PurchaseHandler struct {
	purchaseService service.PurchaseService
	userPolicy      domain.RateLimitPolicy
	logger          *zap.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler. userPolicy is the
// per-user budget passed to the orchestrator on every request.
func NewPurchaseHandler(purchaseService service.PurchaseService, userPolicy domain.RateLimitPolicy, logger *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		userPolicy:      userPolicy,
		logger:          logger,
	}
}

// RegisterRoutes registers the purchase route
func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/purchase", h.Purchase)
}

// Purchase handles a purchase attempt
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Purchase validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.purchaseService.HandlePurchase(r.Context(), domain.PurchaseRequest{
		ProductID:    req.ProductID,
		Quantity:     quantity,
		UserID:       req.UserID,
		QueryUserID:  r.URL.Query().Get("userId"),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
	}, h.userPolicy)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuantity) || errors.Is(err, service.ErrInvalidProductID) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Purchase failed",
			zap.Error(err),
			zap.Int64("product_id", req.ProductID),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process purchase")
		return
	}

	switch result.Status {
	case domain.PurchaseSold:
		if result.UserLimit != nil {
			middleware.WriteRateLimitHeaders(w, *result.UserLimit)
		}
		middleware.RespondWithJSON(w, http.StatusOK, PurchaseResponse{
			Success: true,
			Order: &OrderSummary{
				ID:             result.Order.ID.String(),
				ProductID:      result.Order.ProductID,
				ProductName:    result.ProductName,
				Quantity:       result.Order.Quantity,
				TotalPrice:     result.Order.TotalPrice,
				RemainingStock: result.RemainingStock,
				CreatedAt:      result.Order.CreatedAt,
			},
		})
	case domain.PurchaseOutOfStock:
		if result.UserLimit != nil {
			middleware.WriteRateLimitHeaders(w, *result.UserLimit)
		}
		middleware.RespondWithJSON(w, http.StatusOK, PurchaseResponse{
			Success: false,
			Message: outOfStockMessage,
		})
	case domain.PurchaseNotFound:
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case domain.PurchaseRateLimited:
		middleware.RespondRateLimited(w, domain.RateLimitDecision{
			Allowed:           false,
			Limit:             result.RateLimit.Limit,
			Remaining:         0,
			RetryAfterSeconds: result.RateLimit.RetryAfterSeconds,
		})
	default:
		h.logger.Error("Unknown purchase status", zap.String("status", string(result.Status)))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process purchase")
	}
}
