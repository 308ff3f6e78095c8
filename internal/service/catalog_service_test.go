package service

import (
	"context"
	"testing"

	"flash-sale/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogService_CreateProduct(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(memProducts{store: store}, memOrders{store: store}, zap.NewNop())

	product, err := svc.CreateProduct(context.Background(), &domain.Product{
		Name:  "  Limited hoodie ",
		Stock: 20,
		Price: decimal.RequireFromString("45.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Limited hoodie", product.Name)
	assert.NotZero(t, product.ID)
	assert.Equal(t, 20, store.stockOf(product.ID))
}

func TestCatalogService_CreateProductRejectsInvalid(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(memProducts{store: store}, memOrders{store: store}, zap.NewNop())

	cases := []*domain.Product{
		{Name: "", Stock: 1, Price: decimal.NewFromInt(1)},
		{Name: "x", Stock: -1, Price: decimal.NewFromInt(1)},
		{Name: "x", Stock: 1, Price: decimal.NewFromInt(-1)},
	}

	for _, p := range cases {
		_, err := svc.CreateProduct(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidProduct)
	}
}

func TestCatalogService_SalesSummaryReflectsPurchases(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Console", 10, "20.00")
	inventory, _ := newTestInventory(store)
	svc := NewCatalogService(memProducts{store: store}, memOrders{store: store}, zap.NewNop())

	for _, q := range []int{1, 4} {
		_, err := inventory.Purchase(context.Background(), 1, q, "buyer")
		require.NoError(t, err)
	}

	summary, err := svc.SalesSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OrderCount)
	assert.Equal(t, 5, summary.UnitsSold)
	assert.Equal(t, 5, summary.Stock)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("100.00")))

	_, err = svc.SalesSummary(context.Background(), 77)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_GetProductAndListOrders(t *testing.T) {
	store := newMemStore()
	store.addProduct(3, "Sneakers", 4, "80.00")
	inventory, _ := newTestInventory(store)
	svc := NewCatalogService(memProducts{store: store}, memOrders{store: store}, zap.NewNop())

	_, err := inventory.Purchase(context.Background(), 3, 2, "kim")
	require.NoError(t, err)

	product, err := svc.GetProduct(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Sneakers", product.Name)
	assert.Equal(t, 2, product.Stock)

	orders, err := svc.ListOrders(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "kim", orders[0].UserID)
	assert.Equal(t, 2, orders[0].Quantity)

	_, err = svc.GetProduct(context.Background(), 99)
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = svc.ListOrders(context.Background(), 99)
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = svc.GetProduct(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidProductID)
}
