package transport

import (
	"errors"
	"net/http"

	"flash-sale/internal/domain"
	"flash-sale/internal/middleware"
	"flash-sale/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product seeding payload
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Stock       *int            `json:"stock" validate:"required,gte=0"`
	Price       decimal.Decimal `json:"price"`
}

// AdminHandler handles catalog management for operators
type AdminHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(catalogService service.CatalogService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers admin routes behind auth and the admin role gate
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Post("/products", h.CreateProduct)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/products/{id}/orders", h.ListOrders)
		r.Get("/products/{id}/sales", h.SalesSummary)
	})
}

// CreateProduct seeds a product with its initial stock
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Create product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Stock:       *req.Stock,
		Price:       req.Price,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidProduct) {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product")
			return
		}
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// GetProduct returns a product with its committed stock
func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondCatalogError(w, err, "failed to get product", productID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListOrders returns every committed order for a product, oldest first
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	orders, err := h.catalogService.ListOrders(r.Context(), productID)
	if err != nil {
		h.respondCatalogError(w, err, "failed to list orders", productID)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) respondCatalogError(w http.ResponseWriter, err error, message string, productID int64) {
	if errors.Is(err, service.ErrProductNotFound) {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	h.logger.Error(message, zap.Error(err), zap.Int64("product_id", productID))
	middleware.RespondWithError(w, http.StatusInternalServerError, message)
}

// SalesSummary reports committed sales for a product
func (h *AdminHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.catalogService.SalesSummary(r.Context(), productID)
	if err != nil {
		h.respondCatalogError(w, err, "failed to get sales summary", productID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, summary)
}
