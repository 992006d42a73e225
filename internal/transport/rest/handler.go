// Package rest exposes the storefront core to the presentation layer over JSON/HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/abgdnv/storefront/internal/admin"
	"github.com/abgdnv/storefront/internal/backend"
	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/order"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Session interface {
	Login(ctx context.Context, token string) (auth.Claims, error)
	Logout(ctx context.Context) error
	Claims() (auth.Claims, bool)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type CartService interface {
	GetUserCart(ctx context.Context, userID int64) (cart.Cart, error)
	AddItem(ctx context.Context, productID int64, quantity int) (cart.Cart, error)
	UpdateQuantity(ctx context.Context, cartID, itemID int64, quantity int) (cart.Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID int64) (cart.Cart, error)
	Discard(ctx context.Context) (cart.Cart, error)
	Snapshot() cart.Cart
	State() cart.State
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, details order.PaymentDetails) (*order.Confirmation, error)
	History(ctx context.Context, userID int64) ([]backend.Order, error)
	State() order.State
}

type AdminService interface {
	Load(ctx context.Context) ([]backend.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (backend.Order, error)
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

// Services groups what the handler drives.
type Services struct {
	Session Session
	Auth    Authenticator
	Cart    CartService
	Orders  OrderService
	Admin   AdminService
	Catalog catalog.Service
	Checks  []Check
}

type Handler struct {
	svc      Services
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc Services, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/session", h.Session)

	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.Product)
	r.Get("/categories", h.Categories)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.DiscardCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{itemId}", h.UpdateItem)
			r.Delete("/items/{itemId}", h.RemoveItem)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.OrderHistory)
			r.Post("/", h.PlaceOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireRole(auth.RoleAdmin))
			r.Get("/admin/orders", h.AdminOrders)
			r.Get("/admin/statuses", h.OrderStatuses)
			r.Patch("/admin/orders/{id}/status", h.UpdateOrderStatus)
		})
	})

	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	UserID        int64    `json:"userId,omitempty"`
	Roles         []string `json:"roles"`
}

func newSessionResponse(claims auth.Claims, ok bool) sessionResponse {
	if !ok {
		return sessionResponse{Roles: []string{auth.RoleAnonymous}}
	}
	return sessionResponse{Authenticated: true, UserID: claims.UserID, Roles: claims.Roles}
}

// Login signs the user in with the backend and starts the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !web.DecodeJSON(w, r, h.logger, &req) || !h.valid(w, r, req) {
		return
	}
	token, err := h.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	claims, err := h.svc.Session.Login(r.Context(), token)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, newSessionResponse(claims, true))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Session.Logout(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Logout did not clear the persisted session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	claims, ok := h.svc.Session.Claims()
	web.RespondJSON(w, h.logger, http.StatusOK, newSessionResponse(claims, ok))
}

type cartResponse struct {
	State cart.State `json:"state"`
	Cart  cart.Cart  `json:"cart"`
}

func (h *Handler) respondCart(w http.ResponseWriter, c cart.Cart) {
	web.RespondJSON(w, h.logger, http.StatusOK, cartResponse{State: h.svc.Cart.State(), Cart: c})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	c, err := h.svc.Cart.GetUserCart(r.Context(), claims.UserID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondCart(w, c)
}

type addItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !web.DecodeJSON(w, r, h.logger, &req) || !h.valid(w, r, req) {
		return
	}
	c, err := h.svc.Cart.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondCart(w, c)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem sets a line's quantity. The quantity rule lives in the cart, so
// the body is passed through without validation here.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := web.ParseID(w, r, h.logger, "itemId")
	if !ok {
		return
	}
	var req updateItemRequest
	if !web.DecodeJSON(w, r, h.logger, &req) {
		return
	}
	c, err := h.svc.Cart.UpdateQuantity(r.Context(), h.svc.Cart.Snapshot().ID, itemID, req.Quantity)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondCart(w, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := web.ParseID(w, r, h.logger, "itemId")
	if !ok {
		return
	}
	c, err := h.svc.Cart.RemoveItem(r.Context(), h.svc.Cart.Snapshot().ID, itemID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondCart(w, c)
}

func (h *Handler) DiscardCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cart.Discard(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondCart(w, c)
}

type placeOrderResponse struct {
	State        order.State         `json:"state"`
	Confirmation *order.Confirmation `json:"confirmation,omitempty"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var details order.PaymentDetails
	if !web.DecodeJSON(w, r, h.logger, &details) {
		return
	}
	claims := claimsFrom(r.Context())
	confirmation, err := h.svc.Orders.PlaceOrder(r.Context(), claims.UserID, details)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Order placed", "order_id", confirmation.Order.ID)
	web.RespondJSON(w, h.logger, http.StatusCreated, placeOrderResponse{State: h.svc.Orders.State(), Confirmation: confirmation})
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	orders, err := h.svc.Orders.History(r.Context(), claims.UserID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if orders == nil {
		orders = []backend.Order{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Admin.Load(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if orders == nil {
		orders = []backend.Order{}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, orders)
}

// OrderStatuses lists the statuses an administrator may set.
func (h *Handler) OrderStatuses(w http.ResponseWriter, _ *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, admin.Statuses)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger, "id")
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		web.RespondError(w, h.logger, http.StatusBadRequest, "status parameter is required")
		return
	}
	updated, err := h.svc.Admin.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	var (
		products []backend.Product
		err      error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		products, err = h.svc.Catalog.ProductsByCategory(r.Context(), category)
	} else {
		products, err = h.svc.Catalog.Products(r.Context())
	}
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger, "id")
	if !ok {
		return
	}
	product, err := h.svc.Catalog.Product(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, product)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, categories)
}

// Liveness is a simple liveness probe.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Readiness runs every registered check.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	for i, check := range h.svc.Checks {
		if err := check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "Readiness check failed", "check", strconv.Itoa(i), "error", err)
			web.RespondError(w, h.logger, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
