package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flash-sale/internal/domain"
	"flash-sale/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidProduct = errors.New("invalid product")

// CatalogService seeds products and reports read-only sales aggregates
type CatalogService interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	// ListOrders returns the committed orders of an existing product.
	ListOrders(ctx context.Context, productID int64) ([]*domain.Order, error)
	SalesSummary(ctx context.Context, productID int64) (*domain.SalesSummary, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	logger      *zap.Logger
}

func NewCatalogService(productRepo repository.ProductRepository, orderRepo repository.OrderRepository, logger *zap.Logger) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		orderRepo:   orderRepo,
		logger:      logger,
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.Stock < 0 || product.Price.LessThan(decimal.Zero) {
		return nil, ErrInvalidProduct
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrInvalidProduct) {
			return nil, ErrInvalidProduct
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int("stock", product.Stock),
		zap.String("price", product.Price.StringFixed(2)),
	)

	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	if productID <= 0 {
		return nil, ErrInvalidProductID
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

func (s *catalogService) ListOrders(ctx context.Context, productID int64) ([]*domain.Order, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *catalogService) SalesSummary(ctx context.Context, productID int64) (*domain.SalesSummary, error) {
	if productID <= 0 {
		return nil, ErrInvalidProductID
	}

	summary, err := s.orderRepo.SalesSummary(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get sales summary: %w", err)
	}

	return summary, nil
}
