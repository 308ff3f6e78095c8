package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item on sale with a finite stock
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	Stock       int             `json:"stock" db:"stock"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// SalesSummary aggregates committed orders for one product
type SalesSummary struct {
	ProductID  int64           `json:"productId"`
	OrderCount int             `json:"orderCount"`
	UnitsSold  int             `json:"unitsSold"`
	Revenue    decimal.Decimal `json:"revenue"`
	Stock      int             `json:"stock"`
}
