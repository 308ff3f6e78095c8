package repository

import (
	"database/sql"
	"testing"

	"flash-sale/internal/domain"
)

// Shared fixtures for tests in package repository_test.
var (
	SharedDB    = func() *sql.DB { return testDB }
	SeedProduct = func(t *testing.T, stock int, price string) *domain.Product { return seedProduct(t, stock, price) }
)
