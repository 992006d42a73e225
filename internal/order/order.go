// Package order places orders for the signed-in user, settling card payments with
// the processor before the backend ever sees the order.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/backend"
	"github.com/abgdnv/storefront/internal/cart"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/payment"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type State int

const (
	ReviewingCart State = iota
	PlacingOrder
	OrderConfirmed
	OrderFailed
)

func (s State) String() string {
	switch s {
	case ReviewingCart:
		return "REVIEWING_CART"
	case PlacingOrder:
		return "PLACING_ORDER"
	case OrderConfirmed:
		return "ORDER_CONFIRMED"
	case OrderFailed:
		return "ORDER_FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	MethodCard           = backend.PaymentMethodCard
	MethodCashOnDelivery = backend.PaymentMethodCashOnDelivery
)

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// PaymentDetails is what the shopper chose at checkout. Card payments need the
// card and a billing address.
type PaymentDetails struct {
	Method   string                  `json:"method" validate:"required,oneof=CARD CASH_ON_DELIVERY"`
	Card     *payment.Card           `json:"card,omitempty" validate:"required_if=Method CARD"`
	Billing  *payment.BillingDetails `json:"billing,omitempty" validate:"required_if=Method CARD"`
	Customer *Customer               `json:"customer,omitempty"`
}

// Confirmation is returned for an order the backend accepted.
type Confirmation struct {
	Order           backend.Order `json:"order"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
}

type Backend interface {
	PlaceOrder(ctx context.Context, userID int64, req backend.PlaceOrderRequest) (*backend.Order, error)
	UserOrders(ctx context.Context, userID int64) ([]backend.Order, error)
	CreatePaymentIntent(ctx context.Context, req backend.PaymentIntentRequest) (*backend.PaymentIntent, error)
}

type Cart interface {
	Snapshot() cart.Cart
	ClearCart(ctx context.Context)
}

type Processor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card payment.Card, billing payment.BillingDetails) (*payment.Confirmation, error)
}

// Flow is the checkout state machine for one session.
type Flow struct {
	mu    sync.Mutex
	state State

	api       Backend
	cart      Cart
	processor Processor
	publisher messaging.Publisher
	validate  *validator.Validate
	currency  string
	logger    *slog.Logger

	placedCounter metric.Int64Counter
	failedCounter metric.Int64Counter
}

func NewFlow(api Backend, cart Cart, processor Processor, publisher messaging.Publisher, currency string, logger *slog.Logger) *Flow {
	meter := otel.Meter("storefront-order")
	placedCounter, err := meter.Int64Counter("storefront_orders_placed", metric.WithDescription("Total number of orders accepted by the backend"))
	if err != nil {
		panic(fmt.Sprintf("failed to create storefront_orders_placed counter: %v", err))
	}
	failedCounter, err := meter.Int64Counter("storefront_orders_failed", metric.WithDescription("Total number of failed order placements"))
	if err != nil {
		panic(fmt.Sprintf("failed to create storefront_orders_failed counter: %v", err))
	}
	return &Flow{
		api:           api,
		cart:          cart,
		processor:     processor,
		publisher:     publisher,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		currency:      currency,
		logger:        logger.With("component", "order"),
		placedCounter: placedCounter,
		failedCounter: failedCounter,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Review returns a finished flow to ReviewingCart.
func (f *Flow) Review() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != PlacingOrder {
		f.state = ReviewingCart
	}
}

// PlaceOrder checks out the current cart. The cart is cleared exactly once, and
// only after the backend accepted the order; every failure leaves it untouched.
// Orders carry no idempotency key, so retrying after a timeout of unknown outcome
// can place the same order twice.
func (f *Flow) PlaceOrder(ctx context.Context, userID int64, details PaymentDetails) (*Confirmation, error) {
	if err := f.validate.Struct(details); err != nil {
		return nil, fmt.Errorf("invalid payment details: %w: %w", sferrors.ErrValidation, err)
	}
	snapshot := f.cart.Snapshot()
	if snapshot.Empty() {
		return nil, sferrors.ErrEmptyCart
	}
	if snapshot.UserID != userID {
		return nil, fmt.Errorf("cart of user %d cannot be checked out by user %d: %w", snapshot.UserID, userID, sferrors.ErrForbidden)
	}

	f.mu.Lock()
	if f.state == PlacingOrder {
		f.mu.Unlock()
		return nil, sferrors.ErrOrderInProgress
	}
	f.state = PlacingOrder
	f.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("payment_method", details.Method))
	req, intentID, err := f.prepare(ctx, snapshot, details)
	if err != nil {
		return nil, f.fail(ctx, attrs, err)
	}
	placed, err := f.api.PlaceOrder(ctx, userID, req)
	if err != nil {
		return nil, f.fail(ctx, attrs, err)
	}

	// the backend holds the order now, so local state follows it even if the caller went away
	f.mu.Lock()
	f.state = OrderConfirmed
	f.mu.Unlock()
	f.cart.ClearCart(ctx)
	f.placedCounter.Add(ctx, 1, attrs)
	f.logger.InfoContext(ctx, "order placed", "order_id", placed.ID, "user_id", userID, "payment_method", details.Method, "total", snapshot.TotalAmount.String())

	event := events.OrderPlacedEvent{
		OrderID:       placed.ID,
		OrderNumber:   placed.OrderNumber,
		UserID:        userID,
		TotalAmount:   snapshot.TotalAmount,
		PaymentMethod: details.Method,
		PlacedAt:      time.Now().UTC(),
	}
	if err := f.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish order event", "order_id", placed.ID, "error", err)
	}
	return &Confirmation{Order: *placed, PaymentIntentID: intentID}, nil
}

// prepare settles the payment when needed and builds the place-order request.
func (f *Flow) prepare(ctx context.Context, snapshot cart.Cart, details PaymentDetails) (backend.PlaceOrderRequest, string, error) {
	if details.Method == MethodCashOnDelivery {
		data := &backend.OrderData{PaymentMethod: "Cash on Delivery"}
		if details.Customer != nil {
			data.CustomerInfo = backend.Customer(*details.Customer)
		}
		if details.Billing != nil {
			data.BillingAddress = backend.Address(details.Billing.Address)
		}
		return backend.PlaceOrderRequest{
			PaymentMethod: MethodCashOnDelivery,
			PaymentStatus: backend.PaymentStatusPending,
			OrderData:     data,
		}, "", nil
	}

	if f.processor == nil {
		return backend.PlaceOrderRequest{}, "", fmt.Errorf("card payments are not available: %w", sferrors.ErrPaymentDeclined)
	}
	intent, err := f.api.CreatePaymentIntent(ctx, backend.PaymentIntentRequest{Amount: snapshot.TotalAmount, Currency: f.currency})
	if err != nil {
		return backend.PlaceOrderRequest{}, "", err
	}
	confirmation, err := f.processor.ConfirmCardPayment(ctx, intent.ClientSecret, *details.Card, *details.Billing)
	if err != nil {
		return backend.PlaceOrderRequest{}, "", err
	}
	if !confirmation.Succeeded() {
		return backend.PlaceOrderRequest{}, "", fmt.Errorf("payment %s ended in status %s: %w", confirmation.IntentID, confirmation.Status, sferrors.ErrPaymentDeclined)
	}
	return backend.PlaceOrderRequest{
		PaymentMethod:   MethodCard,
		PaymentStatus:   backend.PaymentStatusCompleted,
		PaymentIntentID: confirmation.IntentID,
	}, confirmation.IntentID, nil
}

func (f *Flow) fail(ctx context.Context, attrs metric.MeasurementOption, err error) error {
	f.mu.Lock()
	f.state = OrderFailed
	f.mu.Unlock()
	f.failedCounter.Add(ctx, 1, attrs)
	f.logger.WarnContext(ctx, "order placement failed", "error", err)
	return err
}

// History lists the user's past orders, most recent as the backend orders them.
func (f *Flow) History(ctx context.Context, userID int64) ([]backend.Order, error) {
	return f.api.UserOrders(ctx, userID)
}

// Reset returns the flow to its initial state. It runs on logout.
func (f *Flow) Reset(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = ReviewingCart
}
