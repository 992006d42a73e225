// Package catalog provides read access to products and categories.
package catalog

import (
	"context"
	"strings"

	"github.com/abgdnv/storefront/internal/backend"
	sferrors "github.com/abgdnv/storefront/internal/errors"
)

// Service defines the catalog read paths.
type Service interface {
	// Products returns every product on sale.
	// Returns an empty slice if there are none.
	Products(ctx context.Context) ([]backend.Product, error)

	// Product returns a single product.
	// Returns a BackendError with status 404 if it does not exist.
	Product(ctx context.Context, id int64) (*backend.Product, error)

	// Categories returns all product categories.
	Categories(ctx context.Context) ([]backend.Category, error)

	// ProductsByCategory returns the products filed under the named category.
	// Returns ErrValidation for a blank name.
	ProductsByCategory(ctx context.Context, category string) ([]backend.Product, error)
}

// Backend is the subset of the storefront API the catalog reads from.
type Backend interface {
	Products(ctx context.Context) ([]backend.Product, error)
	Product(ctx context.Context, id int64) (*backend.Product, error)
	Categories(ctx context.Context) ([]backend.Category, error)
	ProductsByCategory(ctx context.Context, category string) ([]backend.Product, error)
}

type service struct {
	api Backend
}

// NewService creates a catalog over the backend API.
func NewService(api Backend) Service {
	return &service{api: api}
}

func (s *service) Products(ctx context.Context) ([]backend.Product, error) {
	products, err := s.api.Products(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []backend.Product{}
	}
	return products, nil
}

func (s *service) Product(ctx context.Context, id int64) (*backend.Product, error) {
	if id <= 0 {
		return nil, sferrors.Validation("product id must be positive, got %d", id)
	}
	return s.api.Product(ctx, id)
}

func (s *service) Categories(ctx context.Context) ([]backend.Category, error) {
	categories, err := s.api.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []backend.Category{}
	}
	return categories, nil
}

func (s *service) ProductsByCategory(ctx context.Context, category string) ([]backend.Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, sferrors.Validation("category name is required")
	}
	products, err := s.api.ProductsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []backend.Product{}
	}
	return products, nil
}
