package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/abgdnv/storefront/internal/backend"
	"github.com/abgdnv/storefront/internal/cart"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/payment"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) PlaceOrder(ctx context.Context, userID int64, req backend.PlaceOrderRequest) (*backend.Order, error) {
	args := m.Called(ctx, userID, req)
	if o := args.Get(0); o != nil {
		return o.(*backend.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) UserOrders(ctx context.Context, userID int64) ([]backend.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]backend.Order), args.Error(1)
}

func (m *mockBackend) CreatePaymentIntent(ctx context.Context, req backend.PaymentIntentRequest) (*backend.PaymentIntent, error) {
	args := m.Called(ctx, req)
	if i := args.Get(0); i != nil {
		return i.(*backend.PaymentIntent), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ConfirmCardPayment(ctx context.Context, secret string, card payment.Card, billing payment.BillingDetails) (*payment.Confirmation, error) {
	args := m.Called(ctx, secret, card, billing)
	if c := args.Get(0); c != nil {
		return c.(*payment.Confirmation), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeCart struct {
	mu      sync.Mutex
	cart    cart.Cart
	cleared int
}

func (c *fakeCart) Snapshot() cart.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart
}

func (c *fakeCart) ClearCart(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
	c.cart.Items = nil
	c.cart.TotalAmount = decimal.Zero
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

const userID = int64(7)

var (
	card    = &payment.Card{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
	billing = &payment.BillingDetails{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Address: payment.Address{Street: "1 Main St", City: "Pune", Country: "IN", PostalCode: "411001"},
	}
	cardDetails = PaymentDetails{Method: MethodCard, Card: card, Billing: billing}
	codDetails  = PaymentDetails{Method: MethodCashOnDelivery, Customer: &Customer{FirstName: "Jane", Email: "jane@example.com"}}
)

func filledCart() cart.Cart {
	return cart.Cart{
		ID:     3,
		UserID: userID,
		Items: []cart.Item{
			{ID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
			{ID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		TotalAmount: decimal.NewFromInt(250),
	}
}

type fixture struct {
	flow      *Flow
	api       *mockBackend
	processor *mockProcessor
	cart      *fakeCart
	publisher *recordingPublisher
}

func newFixture(t *testing.T, c cart.Cart) fixture {
	t.Helper()
	f := fixture{
		api:       new(mockBackend),
		processor: new(mockProcessor),
		cart:      &fakeCart{cart: c},
		publisher: &recordingPublisher{},
	}
	f.flow = NewFlow(f.api, f.cart, f.processor, f.publisher, "inr", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	// given
	f := newFixture(t, cart.Cart{ID: 3, UserID: userID})

	// when
	_, err := f.flow.PlaceOrder(context.Background(), userID, codDetails)

	// then
	assert.ErrorIs(t, err, sferrors.ErrEmptyCart)
	f.api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
	f.api.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	f.processor.AssertNotCalled(t, "ConfirmCardPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, ReviewingCart, f.flow.State())
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	// given
	f := newFixture(t, filledCart())
	f.api.On("PlaceOrder", mock.Anything, userID, mock.MatchedBy(func(r backend.PlaceOrderRequest) bool {
		return r.PaymentMethod == MethodCashOnDelivery && r.PaymentStatus == backend.PaymentStatusPending &&
			r.PaymentIntentID == "" && r.OrderData != nil && r.OrderData.CustomerInfo.FirstName == "Jane"
	})).Return(&backend.Order{ID: 42, Status: "CASH_ON_DELIVERY_PENDING"}, nil)

	// when
	conf, err := f.flow.PlaceOrder(context.Background(), userID, codDetails)

	// then
	require.NoError(t, err)
	assert.Equal(t, int64(42), conf.Order.ID)
	assert.Equal(t, OrderConfirmed, f.flow.State())
	assert.Equal(t, 1, f.cart.cleared)
	f.api.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0].(events.OrderPlacedEvent)
	assert.Equal(t, int64(42), event.OrderID)
	assert.True(t, decimal.NewFromInt(250).Equal(event.TotalAmount))
}

func TestPlaceOrder_Card(t *testing.T) {
	// given
	f := newFixture(t, filledCart())
	f.api.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r backend.PaymentIntentRequest) bool {
		return r.Amount.Equal(decimal.NewFromInt(250)) && r.Currency == "inr"
	})).Return(&backend.PaymentIntent{ClientSecret: "pi_1_secret_x"}, nil)
	f.processor.On("ConfirmCardPayment", mock.Anything, "pi_1_secret_x", *card, *billing).
		Return(&payment.Confirmation{IntentID: "pi_1", Status: payment.StatusSucceeded}, nil)
	f.api.On("PlaceOrder", mock.Anything, userID, backend.PlaceOrderRequest{
		PaymentMethod:   MethodCard,
		PaymentStatus:   backend.PaymentStatusCompleted,
		PaymentIntentID: "pi_1",
	}).Return(&backend.Order{ID: 43, Status: "PAID"}, nil)

	// when
	conf, err := f.flow.PlaceOrder(context.Background(), userID, cardDetails)

	// then
	require.NoError(t, err)
	assert.Equal(t, "pi_1", conf.PaymentIntentID)
	assert.Equal(t, OrderConfirmed, f.flow.State())
	assert.Equal(t, 1, f.cart.cleared)
	f.api.AssertExpectations(t)
}

func TestPlaceOrder_FailuresNeverClearCart(t *testing.T) {
	tests := []struct {
		name    string
		details PaymentDetails
		setup   func(f fixture)
		wantErr error
	}{
		{
			name:    "payment declined",
			details: cardDetails,
			setup: func(f fixture) {
				f.api.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(&backend.PaymentIntent{ClientSecret: "pi_1_secret_x"}, nil)
				f.processor.On("ConfirmCardPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("card declined: %w", sferrors.ErrPaymentDeclined))
			},
			wantErr: sferrors.ErrPaymentDeclined,
		},
		{
			name:    "payment not completed",
			details: cardDetails,
			setup: func(f fixture) {
				f.api.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(&backend.PaymentIntent{ClientSecret: "pi_1_secret_x"}, nil)
				f.processor.On("ConfirmCardPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(&payment.Confirmation{IntentID: "pi_1", Status: "requires_action"}, nil)
			},
			wantErr: sferrors.ErrPaymentDeclined,
		},
		{
			name:    "network failure",
			details: codDetails,
			setup: func(f fixture) {
				f.api.On("PlaceOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("timeout: %w", sferrors.ErrNetwork))
			},
			wantErr: sferrors.ErrNetwork,
		},
		{
			name:    "backend rejection",
			details: codDetails,
			setup: func(f fixture) {
				f.api.On("PlaceOrder", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, &sferrors.BackendError{Status: http.StatusConflict, Message: "Insufficient stock"})
			},
			wantErr: sferrors.ErrBackendRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			f := newFixture(t, filledCart())
			tt.setup(f)

			// when
			_, err := f.flow.PlaceOrder(context.Background(), userID, tt.details)

			// then
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, OrderFailed, f.flow.State())
			assert.Zero(t, f.cart.cleared)
			assert.Len(t, f.cart.Snapshot().Items, 2)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestPlaceOrder_PaymentDeclinedNeverReachesBackend(t *testing.T) {
	// given
	f := newFixture(t, filledCart())
	f.api.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(&backend.PaymentIntent{ClientSecret: "pi_1_secret_x"}, nil)
	f.processor.On("ConfirmCardPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, sferrors.ErrPaymentDeclined)

	// when
	_, err := f.flow.PlaceOrder(context.Background(), userID, cardDetails)

	// then
	require.Error(t, err)
	f.api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_CartOfAnotherUser(t *testing.T) {
	// given
	f := newFixture(t, filledCart())

	// when
	_, err := f.flow.PlaceOrder(context.Background(), userID+1, cardDetails)

	// then
	assert.ErrorIs(t, err, sferrors.ErrForbidden)
	assert.Equal(t, ReviewingCart, f.flow.State())
	assert.Zero(t, f.cart.cleared)
	f.api.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	f.api.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_InvalidDetails(t *testing.T) {
	tests := []struct {
		name    string
		details PaymentDetails
	}{
		{name: "no method", details: PaymentDetails{}},
		{name: "unknown method", details: PaymentDetails{Method: "BARTER"}},
		{name: "card without card", details: PaymentDetails{Method: MethodCard, Billing: billing}},
		{name: "card without billing", details: PaymentDetails{Method: MethodCard, Card: card}},
		{name: "bad card number", details: PaymentDetails{Method: MethodCard, Card: &payment.Card{Number: "1234", ExpMonth: 1, ExpYear: 2030, CVC: "123"}, Billing: billing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			f := newFixture(t, filledCart())

			// when
			_, err := f.flow.PlaceOrder(context.Background(), userID, tt.details)

			// then
			assert.ErrorIs(t, err, sferrors.ErrValidation)
			assert.Equal(t, ReviewingCart, f.flow.State())
			assert.Zero(t, f.cart.cleared)
		})
	}
}

func TestHistory(t *testing.T) {
	// given
	f := newFixture(t, cart.Cart{})
	f.api.On("UserOrders", mock.Anything, userID).Return([]backend.Order{{ID: 1}, {ID: 2}}, nil)

	// when
	orders, err := f.flow.History(context.Background(), userID)

	// then
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
