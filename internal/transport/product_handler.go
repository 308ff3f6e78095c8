package transport

import (
	"errors"
	"net/http"
	"strconv"

	"flash-sale/internal/middleware"
	"flash-sale/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StockResponse is the payload of the stock query
type StockResponse struct {
	Success bool `json:"success"`
	Stock   int  `json:"stock"`
}

// ProductHandler serves the lock-free stock read path
type ProductHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(inventoryService service.InventoryService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers the product routes behind the given limiter
func (h *ProductHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.With(rateLimit).Get("/api/products/{id}/stock", h.GetStock)
}

// GetStock handles the stock query
func (h *ProductHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	stock, err := h.inventoryService.GetStock(r.Context(), productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to read stock", zap.Error(err), zap.Int64("product_id", productID))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, StockResponse{Success: true, Stock: stock})
}

// productIDParam parses the {id} URL parameter, answering 400 when it is
// not a positive integer.
func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}
