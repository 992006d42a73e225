// Package admin keeps the administrator's order listing and applies status changes
// to it optimistically.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/abgdnv/storefront/internal/backend"
	sferrors "github.com/abgdnv/storefront/internal/errors"
)

const (
	StatusPending               = "PENDING"
	StatusProcessing            = "PROCESSING"
	StatusPaid                  = "PAID"
	StatusCashOnDeliveryPending = "CASH_ON_DELIVERY_PENDING"
	StatusShipped               = "SHIPPED"
	StatusDelivered             = "DELIVERED"
	StatusCompleted             = "COMPLETED"
	StatusCancelled             = "CANCELLED"
)

// Statuses lists every status an administrator may set.
var Statuses = []string{
	StatusPending,
	StatusProcessing,
	StatusPaid,
	StatusCashOnDeliveryPending,
	StatusShipped,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
}

func Recognized(status string) bool {
	return slices.Contains(Statuses, status)
}

type Backend interface {
	AdminOrders(ctx context.Context) ([]backend.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// Board is the order listing. It is safe for concurrent use.
type Board struct {
	mu     sync.RWMutex
	orders []backend.Order

	api    Backend
	logger *slog.Logger
}

func NewBoard(api Backend, logger *slog.Logger) *Board {
	return &Board{
		api:    api,
		logger: logger.With("component", "admin"),
	}
}

// Load replaces the listing with the backend's.
func (b *Board) Load(ctx context.Context) ([]backend.Order, error) {
	orders, err := b.api.AdminOrders(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = orders
	return slices.Clone(orders), nil
}

// Orders returns a copy of the listing.
func (b *Board) Orders() []backend.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.orders)
}

// UpdateOrderStatus shows the new status right away and sends it to the backend.
// If the backend refuses, the previous status comes back, unless the entry was
// changed again in the meantime.
func (b *Board) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (backend.Order, error) {
	if !Recognized(status) {
		return backend.Order{}, fmt.Errorf("%q: %w", status, sferrors.ErrUnknownStatus)
	}

	b.mu.Lock()
	idx := b.find(orderID)
	if idx < 0 {
		b.mu.Unlock()
		return backend.Order{}, fmt.Errorf("order %d: %w", orderID, sferrors.ErrOrderNotFound)
	}
	prev := b.orders[idx].Status
	b.orders[idx].Status = status
	b.mu.Unlock()

	if err := b.api.UpdateOrderStatus(ctx, orderID, status); err != nil {
		b.revert(orderID, status, prev)
		b.logger.WarnContext(ctx, "order status update failed", "order_id", orderID, "status", status, "restored", prev, "error", err)
		return backend.Order{}, err
	}

	b.logger.InfoContext(ctx, "order status updated", "order_id", orderID, "from", prev, "to", status)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if idx := b.find(orderID); idx >= 0 {
		return b.orders[idx], nil
	}
	return backend.Order{}, fmt.Errorf("order %d: %w", orderID, sferrors.ErrOrderNotFound)
}

// revert puts prev back only while the entry still shows the optimistic value.
func (b *Board) revert(orderID int64, optimistic, prev string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.find(orderID); idx >= 0 && b.orders[idx].Status == optimistic {
		b.orders[idx].Status = prev
	}
}

// Reset drops the listing. It runs on logout.
func (b *Board) Reset(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = nil
}

func (b *Board) find(orderID int64) int {
	return slices.IndexFunc(b.orders, func(o backend.Order) bool { return o.ID == orderID })
}
