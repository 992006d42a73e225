// Package cart keeps the local view of the signed-in user's cart in step with the backend.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/abgdnv/storefront/internal/backend"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/shopspring/decimal"
)

type State int

const (
	Empty State = iota
	Loading
	Populated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Loading:
		return "LOADING"
	case Populated:
		return "POPULATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Item struct {
	ID        int64           `json:"id"`
	Product   backend.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	ID          int64           `json:"cartId"`
	UserID      int64           `json:"userId"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// clone copies the items so callers never share the store's backing array.
// Items is never nil in the copy, an empty cart renders as "items": [].
func (c Cart) clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// recompute derives TotalAmount from the line totals.
func (c *Cart) recompute() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.TotalAmount = total
}

func (c *Cart) find(itemID int64) int {
	return slices.IndexFunc(c.Items, func(i Item) bool { return i.ID == itemID })
}

// Backend is the subset of the storefront API the cart needs.
type Backend interface {
	UserCart(ctx context.Context, userID int64) (*backend.Cart, error)
	AddItem(ctx context.Context, productID int64, quantity int) error
	UpdateItem(ctx context.Context, cartID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

// Identity yields the signed-in user.
type Identity interface {
	Claims() (auth.Claims, bool)
}

// Store is the cart state machine. It is safe for concurrent use; concurrent
// mutations are not serialized across the network call and the last answer wins.
type Store struct {
	mu    sync.RWMutex
	state State
	cart  Cart
	// epoch changes on Reset so answers to requests sent before it are dropped.
	epoch uint64

	api      Backend
	identity Identity
	logger   *slog.Logger
}

func NewStore(api Backend, identity Identity, logger *slog.Logger) *Store {
	return &Store{
		api:      api,
		identity: identity,
		logger:   logger.With("component", "cart"),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the local cart.
func (s *Store) Snapshot() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.clone()
}

// GetUserCart replaces the local cart with the backend's. A user without a cart
// yet gets an empty one.
func (s *Store) GetUserCart(ctx context.Context, userID int64) (Cart, error) {
	s.mu.Lock()
	prev := s.state
	epoch := s.epoch
	s.state = Loading
	s.mu.Unlock()

	remote, err := s.api.UserCart(ctx, userID)
	if err != nil && !notFound(err) {
		s.mu.Lock()
		if s.epoch == epoch && s.state == Loading {
			s.state = prev
		}
		s.mu.Unlock()
		return Cart{}, err
	}
	next := fromBackend(userID, remote)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil || s.epoch != epoch {
		if s.epoch == epoch && s.state == Loading {
			s.state = prev
		}
		return Cart{}, staleError(ctx)
	}
	s.apply(next)
	s.logger.DebugContext(ctx, "cart loaded", "user_id", userID, "items", len(s.cart.Items), "total", s.cart.TotalAmount.String())
	return s.cart.clone(), nil
}

// AddItem adds quantity units of the product and reloads the cart.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, sferrors.Validation("quantity must be at least 1, got %d", quantity)
	}
	claims, ok := s.identity.Claims()
	if !ok {
		return Cart{}, fmt.Errorf("cannot add to cart: %w", sferrors.ErrUnauthenticated)
	}
	if err := s.api.AddItem(ctx, productID, quantity); err != nil {
		return Cart{}, err
	}
	return s.GetUserCart(ctx, claims.UserID)
}

// UpdateQuantity sets the quantity of one line. Quantities below 1 are rejected
// without contacting the backend; removing a line is RemoveItem's job.
func (s *Store) UpdateQuantity(ctx context.Context, cartID, itemID int64, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, sferrors.Validation("quantity must be at least 1, got %d", quantity)
	}
	epoch, err := s.lookup(cartID, itemID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.api.UpdateItem(ctx, cartID, itemID, quantity); err != nil {
		return Cart{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.epoch != epoch {
		return Cart{}, staleError(ctx)
	}
	// the line may have gone away while the request was in flight
	if idx := s.cart.find(itemID); idx >= 0 && s.cart.ID == cartID {
		s.cart.Items[idx].Quantity = quantity
		s.cart.recompute()
	}
	return s.cart.clone(), nil
}

// RemoveItem drops one line locally once the backend has removed it.
func (s *Store) RemoveItem(ctx context.Context, cartID, itemID int64) (Cart, error) {
	epoch, err := s.lookup(cartID, itemID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.api.RemoveItem(ctx, cartID, itemID); err != nil {
		return Cart{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.epoch != epoch {
		return Cart{}, staleError(ctx)
	}
	if idx := s.cart.find(itemID); idx >= 0 && s.cart.ID == cartID {
		next := s.cart.clone()
		next.Items = slices.Delete(next.Items, idx, idx+1)
		s.apply(next)
	}
	return s.cart.clone(), nil
}

// ClearCart empties the local cart after a confirmed order. The backend clears
// its side as part of placing the order.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Cart{ID: s.cart.ID, UserID: s.cart.UserID}
	s.apply(next)
	s.logger.InfoContext(ctx, "cart cleared", "cart_id", next.ID)
}

// Discard asks the backend to empty the cart and then empties the local one.
func (s *Store) Discard(ctx context.Context) (Cart, error) {
	s.mu.RLock()
	cartID, epoch := s.cart.ID, s.epoch
	s.mu.RUnlock()
	if cartID == 0 {
		return Cart{}, fmt.Errorf("no cart loaded: %w", sferrors.ErrItemNotFound)
	}
	if err := s.api.ClearCart(ctx, cartID); err != nil {
		return Cart{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.epoch != epoch {
		return Cart{}, staleError(ctx)
	}
	s.apply(Cart{ID: s.cart.ID, UserID: s.cart.UserID})
	return s.cart.clone(), nil
}

// Reset forgets the cart entirely. It runs on logout.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cart = Cart{}
	s.state = Empty
	s.logger.DebugContext(ctx, "cart reset")
}

func (s *Store) lookup(cartID, itemID int64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cart.ID != cartID || s.cart.find(itemID) < 0 {
		return 0, fmt.Errorf("item %d in cart %d: %w", itemID, cartID, sferrors.ErrItemNotFound)
	}
	return s.epoch, nil
}

// apply must be called with mu held.
func (s *Store) apply(next Cart) {
	if next.Items == nil {
		next.Items = []Item{}
	}
	next.recompute()
	s.cart = next
	if next.Empty() {
		s.state = Empty
	} else {
		s.state = Populated
	}
}

func fromBackend(userID int64, remote *backend.Cart) Cart {
	c := Cart{UserID: userID, Items: []Item{}}
	if remote == nil {
		return c
	}
	c.ID = remote.ID
	c.Items = make([]Item, 0, len(remote.Items))
	for _, it := range remote.Items {
		c.Items = append(c.Items, Item{
			ID:        it.ID,
			Product:   it.Product,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return c
}

func notFound(err error) bool {
	var be *sferrors.BackendError
	return errors.As(err, &be) && be.Status == http.StatusNotFound
}

// staleError explains why an answer was dropped: either the caller went away or
// the session ended while the request was in flight.
func staleError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("session ended during cart update: %w", sferrors.ErrUnauthenticated)
}
