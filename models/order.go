package models

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID              string           `json:"id"`
	ProductID       string           `json:"product_id"`
	BuyerID         *string          `json:"buyer_id"`
	AmountCents     int64            `json:"amount_cents"`
	StripeSessionID string           `json:"stripe_session_id"`
	ChapterID       *string          `json:"chapter_id"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
	Status          OrderStatus      `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CheckoutRequest is the optional body of POST /checkout/:productId.
type CheckoutRequest struct {
	Email           string           `json:"email"`
	Password        string           `json:"password"`
	ShippingCents   *int64           `json:"shippingCents"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// OrderSnapshot is returned by GET /checkout/session/:sessionId.
type OrderSnapshot struct {
	Order   Order   `json:"order"`
	Product Product `json:"product"`
}
