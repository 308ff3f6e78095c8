package repository

import (
	"context"
	"database/sql"
	"fmt"

	"flash-sale/internal/domain"
)

// OrderRepository defines read-only access to committed orders
type OrderRepository interface {
	ListByProduct(ctx context.Context, productID int64) ([]*domain.Order, error)
	SalesSummary(ctx context.Context, productID int64) (*domain.SalesSummary, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// ListByProduct returns every order for a product, oldest first
func (r *orderRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.Order, error) {
	query := `
		SELECT id, user_id, product_id, quantity, total_price, status, created_at
		FROM orders
		WHERE product_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		var status string
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.ProductID,
			&order.Quantity,
			&order.TotalPrice,
			&status,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// SalesSummary aggregates committed orders against the product's current stock
func (r *orderRepository) SalesSummary(ctx context.Context, productID int64) (*domain.SalesSummary, error) {
	query := `
		SELECT p.id, p.stock,
		       COUNT(o.id),
		       COALESCE(SUM(o.quantity), 0),
		       COALESCE(SUM(o.total_price), 0)
		FROM products p
		LEFT JOIN orders o ON o.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id, p.stock
	`

	summary := &domain.SalesSummary{}
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&summary.ProductID,
		&summary.Stock,
		&summary.OrderCount,
		&summary.UnitsSold,
		&summary.Revenue,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to summarize sales: %w", err)
	}

	return summary, nil
}
