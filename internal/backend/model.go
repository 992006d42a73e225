package backend

import "github.com/shopspring/decimal"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Image struct {
	ID          int64  `json:"id"`
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory"`
	Description string          `json:"description"`
	Category    *Category       `json:"category,omitempty"`
	Images      []Image         `json:"images,omitempty"`
}

// CartItem is one line of a cart as the backend reports it.
type CartItem struct {
	ID        int64           `json:"id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Product   Product         `json:"product"`
}

type Cart struct {
	ID          int64           `json:"cartId"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type OrderItem struct {
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductBrand string          `json:"productBrand"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	OrderNumber string          `json:"orderNumber,omitempty"`
	OrderDate   string          `json:"orderDate"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []OrderItem     `json:"items"`
}

// Payment methods and statuses understood by the place-order endpoint.
const (
	PaymentMethodCard           = "CARD"
	PaymentMethodCashOnDelivery = "CASH_ON_DELIVERY"

	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusPending   = "PENDING"
)

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// OrderData is the free-form checkout context sent along with cash-on-delivery orders.
type OrderData struct {
	CustomerInfo   Customer `json:"customerInfo"`
	BillingAddress Address  `json:"billingAddress"`
	PaymentMethod  string   `json:"paymentMethod"`
}

type PlaceOrderRequest struct {
	PaymentMethod   string     `json:"paymentMethod"`
	PaymentStatus   string     `json:"paymentStatus"`
	PaymentIntentID string     `json:"paymentIntentId,omitempty"`
	OrderData       *OrderData `json:"orderData,omitempty"`
}

type PaymentIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PaymentIntent is the processor intent created by the backend; ClientSecret
// authorizes confirming it from the client side.
type PaymentIntent struct {
	ID           string `json:"id,omitempty"`
	ClientSecret string `json:"clientSecret"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type page[T any] struct {
	Content []T `json:"content"`
}
