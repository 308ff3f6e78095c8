package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flash-sale/internal/domain"
)

var ErrStockConstraint = errors.New("stock would become negative")

// InventoryRepository is the transactional side of the record store: every
// method except BeginTx runs inside the caller's transaction.
type InventoryRepository interface {
	BeginTx(ctx context.Context) (Tx, error)
	// GetProductForUpdate reads the product and takes its row lock, blocking
	// until any other transaction holding it finishes.
	GetProductForUpdate(ctx context.Context, tx Tx, id int64) (*domain.Product, error)
	// DecrementStock subtracts quantity and returns the new stock.
	DecrementStock(ctx context.Context, tx Tx, id int64, quantity int) (int, error)
	CreateOrder(ctx context.Context, tx Tx, order *domain.Order) error
}

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new instance of InventoryRepository
func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	return beginTx(ctx, r.db)
}

func (r *inventoryRepository) GetProductForUpdate(ctx context.Context, tx Tx, id int64) (*domain.Product, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, description, image_url, stock, price, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

	product, err := scanProduct(sqlTx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product with lock: %w", err)
	}

	return product, nil
}

func (r *inventoryRepository) DecrementStock(ctx context.Context, tx Tx, id int64, quantity int) (int, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1
		RETURNING stock
	`

	var remaining int
	if err := sqlTx.QueryRowContext(ctx, query, id, quantity).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		if isPgError(err, pgCheckViolation) {
			return 0, ErrStockConstraint
		}
		return 0, fmt.Errorf("failed to decrease stock: %w", err)
	}

	return remaining, nil
}

func (r *inventoryRepository) CreateOrder(ctx context.Context, tx Tx, order *domain.Order) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (id, user_id, product_id, quantity, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = sqlTx.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.ProductID,
		order.Quantity,
		order.TotalPrice,
		string(order.Status),
		order.CreatedAt,
	)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}
