package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

// Purchases settle synchronously, so every order is created completed.
const OrderStatusCompleted OrderStatus = "completed"

// Order is an immutable record of one committed purchase
type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     string          `json:"userId" db:"user_id"`
	ProductID  int64           `json:"productId" db:"product_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice" db:"total_price"`
	Status     OrderStatus     `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// NewOrder builds a completed order priced at the given unit price.
func NewOrder(userID string, productID int64, quantity int, unitPrice decimal.Decimal) *Order {
	return &Order{
		ID:         uuid.New(),
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:     OrderStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
}
