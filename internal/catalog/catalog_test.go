package catalog

import (
	"context"
	"testing"

	"github.com/abgdnv/storefront/internal/backend"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Products(ctx context.Context) ([]backend.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]backend.Product)
	return products, args.Error(1)
}

func (m *mockBackend) Product(ctx context.Context, id int64) (*backend.Product, error) {
	args := m.Called(ctx, id)
	product, _ := args.Get(0).(*backend.Product)
	return product, args.Error(1)
}

func (m *mockBackend) Categories(ctx context.Context) ([]backend.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]backend.Category)
	return categories, args.Error(1)
}

func (m *mockBackend) ProductsByCategory(ctx context.Context, category string) ([]backend.Product, error) {
	args := m.Called(ctx, category)
	products, _ := args.Get(0).([]backend.Product)
	return products, args.Error(1)
}

func TestService_Products_NeverNil(t *testing.T) {
	// given
	api := new(mockBackend)
	api.On("Products", mock.Anything).Return(nil, nil)
	svc := NewService(api)

	// when
	products, err := svc.Products(context.Background())

	// then
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestService_ProductsByCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		wantErr  error
		wantCall string
	}{
		{name: "trimmed", category: "  Audio ", wantCall: "Audio"},
		{name: "blank", category: "   ", wantErr: sferrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			api := new(mockBackend)
			if tt.wantCall != "" {
				api.On("ProductsByCategory", mock.Anything, tt.wantCall).Return([]backend.Product{{ID: 1}}, nil)
			}
			svc := NewService(api)

			// when
			products, err := svc.ProductsByCategory(context.Background(), tt.category)

			// then
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				api.AssertNotCalled(t, "ProductsByCategory", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Len(t, products, 1)
		})
	}
}

func TestService_Product_RejectsBadID(t *testing.T) {
	// given
	api := new(mockBackend)
	svc := NewService(api)

	// when
	_, err := svc.Product(context.Background(), 0)

	// then
	assert.ErrorIs(t, err, sferrors.ErrValidation)
	api.AssertNotCalled(t, "Product", mock.Anything, mock.Anything)
}
