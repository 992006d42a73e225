// Package backend exposes the storefront REST endpoints as typed calls over the
// authenticated request pipeline.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/abgdnv/storefront/internal/client"
	sferrors "github.com/abgdnv/storefront/internal/errors"
)

// Doer sends one request and decodes its answer into out.
// Do unwraps the {"message","data"} envelope, DoRaw decodes the body as is.
type Doer interface {
	Do(ctx context.Context, req client.Request, out any) error
	DoRaw(ctx context.Context, req client.Request, out any) error
}

// API is the storefront backend.
type API struct {
	client Doer
}

func New(client Doer) *API {
	return &API{client: client}
}

// Login exchanges credentials for an access token. The same answer sets the
// refresh cookie in the client's jar.
func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	err := a.client.DoRaw(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   LoginRequest{Email: email, Password: password},
		Public: true,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login failed: no access token in answer: %w", sferrors.ErrBackendRejected)
	}
	return resp.AccessToken, nil
}

func (a *API) UserCart(ctx context.Context, userID int64) (*Cart, error) {
	var cart Cart
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/carts/user/%d/cart", userID),
	}, &cart)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart of user %d: %w", userID, err)
	}
	return &cart, nil
}

func (a *API) ClearCart(ctx context.Context, cartID int64) error {
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/carts/cart/%d/clear", cartID),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to clear cart %d: %w", cartID, err)
	}
	return nil
}

// AddItem adds quantity units of a product to the current user's cart.
func (a *API) AddItem(ctx context.Context, productID int64, quantity int) error {
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/cartItems/item/add",
		Query: url.Values{
			"productId": {strconv.FormatInt(productID, 10)},
			"quantity":  {strconv.Itoa(quantity)},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to add product %d to cart: %w", productID, err)
	}
	return nil
}

func (a *API) UpdateItem(ctx context.Context, cartID, itemID int64, quantity int) error {
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/cartItems/cart/%d/item/%d/update", cartID, itemID),
		Query:  url.Values{"quantity": {strconv.Itoa(quantity)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to update item %d in cart %d: %w", itemID, cartID, err)
	}
	return nil
}

func (a *API) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/cartItems/cart/%d/item/%d/remove", cartID, itemID),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to remove item %d from cart %d: %w", itemID, cartID, err)
	}
	return nil
}

func (a *API) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*Order, error) {
	var order Order
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/orders/user/%d/place-order", userID),
		Body:   req,
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("failed to place order for user %d: %w", userID, err)
	}
	return &order, nil
}

func (a *API) UserOrders(ctx context.Context, userID int64) ([]Order, error) {
	var orders []Order
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/orders/user/%d/orders", userID),
	}, &orders)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders of user %d: %w", userID, err)
	}
	return orders, nil
}

// CreatePaymentIntent asks the backend to open a processor intent for amount.
func (a *API) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := a.client.DoRaw(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/orders/create-payment-intent",
		Body:   req,
	}, &intent)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return &intent, nil
}

func (a *API) AdminOrders(ctx context.Context) ([]Order, error) {
	var p page[Order]
	err := a.client.DoRaw(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/admin/orders",
	}, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return p.Content, nil
}

func (a *API) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	err := a.client.DoRaw(ctx, client.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/admin/orders/%d/status", orderID),
		Query:  url.Values{"status": {status}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to set status of order %d to %s: %w", orderID, status, err)
	}
	return nil
}

func (a *API) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	err := a.client.Do(ctx, client.Request{Method: http.MethodGet, Path: "/products/all"}, &products)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, nil
}

func (a *API) Product(ctx context.Context, id int64) (*Product, error) {
	var product Product
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/products/product/%d/product", id),
	}, &product)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return &product, nil
}

func (a *API) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	var products []Product
	err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/products/product/by/category",
		Query:  url.Values{"category": {category}},
	}, &products)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products of category %s: %w", category, err)
	}
	return products, nil
}

func (a *API) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := a.client.Do(ctx, client.Request{Method: http.MethodGet, Path: "/categories/all"}, &categories)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, nil
}
