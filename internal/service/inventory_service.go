package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flash-sale/internal/domain"
	"flash-sale/internal/metrics"
	"flash-sale/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "flash-sale/service"

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrInvalidProductID = errors.New("product id must be a positive integer")
	ErrProductNotFound  = repository.ErrProductNotFound
)

// InventoryService defines the purchase transaction and the stock read path
type InventoryService interface {
	// Purchase sells quantity units of a product to userID. Out-of-stock and
	// missing products are results, not errors.
	Purchase(ctx context.Context, productID int64, quantity int, userID string) (*domain.PurchaseResult, error)
	// GetStock returns committed stock without taking any lock.
	GetStock(ctx context.Context, productID int64) (int, error)
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	productRepo   repository.ProductRepository
	metrics       *metrics.Registry
	tracer        trace.Tracer
	logger        *zap.Logger
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(
	inventoryRepo repository.InventoryRepository,
	productRepo repository.ProductRepository,
	registry *metrics.Registry,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		productRepo:   productRepo,
		metrics:       registry,
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
	}
}

// Purchase runs lock, check, decrement and record as one transaction. The
// product row lock serializes purchases of the same product; any failure
// after BeginTx rolls everything back.
func (s *inventoryService) Purchase(ctx context.Context, productID int64, quantity int, userID string) (*domain.PurchaseResult, error) {
	if productID <= 0 {
		return nil, ErrInvalidProductID
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	ctx, span := s.tracer.Start(ctx, "inventory.Purchase", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("purchase.quantity", quantity),
	))
	defer span.End()

	start := time.Now()
	result, err := s.purchase(ctx, productID, quantity, userID)
	s.metrics.ObserveTx(time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purchase failed")
		s.metrics.ObservePurchase("error")
		s.logger.Error("Purchase transaction failed",
			zap.Error(err),
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity),
			zap.String("user_id", userID),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("purchase.status", string(result.Status)))
	s.metrics.ObservePurchase(string(result.Status))
	return result, nil
}

func (s *inventoryService) purchase(ctx context.Context, productID int64, quantity int, userID string) (*domain.PurchaseResult, error) {
	tx, err := s.inventoryRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil {
			s.logger.Error("Failed to rollback purchase", zap.Error(err), zap.Int64("product_id", productID))
		}
	}()

	product, err := s.inventoryRepo.GetProductForUpdate(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			s.logger.Debug("Purchase of unknown product", zap.Int64("product_id", productID))
			return domain.NotFoundResult(), nil
		}
		return nil, err
	}

	if product.Stock < quantity {
		s.logger.Info("Out of stock",
			zap.Int64("product_id", productID),
			zap.Int("stock", product.Stock),
			zap.Int("quantity", quantity),
		)
		return domain.OutOfStockResult(product.Name, product.Stock), nil
	}

	remaining, err := s.inventoryRepo.DecrementStock(ctx, tx, productID, quantity)
	if err != nil {
		return nil, err
	}

	order := domain.NewOrder(userID, productID, quantity, product.Price)
	if err := s.inventoryRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("Purchase committed",
		zap.String("order_id", order.ID.String()),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("remaining_stock", remaining),
	)

	return domain.SoldResult(order, product.Name, remaining), nil
}

func (s *inventoryService) GetStock(ctx context.Context, productID int64) (int, error) {
	if productID <= 0 {
		return 0, ErrInvalidProductID
	}

	stock, err := s.productRepo.GetStock(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to get stock: %w", err)
	}

	return stock, nil
}
