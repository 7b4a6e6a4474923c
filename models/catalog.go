package models

type SellerStatus string

const (
	SellerStatusPending  SellerStatus = "PENDING"
	SellerStatusApproved SellerStatus = "APPROVED"
	SellerStatusRejected SellerStatus = "REJECTED"
)

type Product struct {
	ID         string  `json:"id"`
	SellerID   string  `json:"seller_id"`
	Name       string  `json:"name"`
	PriceCents int64   `json:"price_cents"`
	IsBranded  bool    `json:"is_kappa_branded"`
	ImageURL   *string `json:"image_url,omitempty"`
	// ChapterID is the chapter credited on orders for this product, if any.
	ChapterID  *string `json:"sponsoring_chapter_id,omitempty"`
}

// BusinessProfile mirrors the merchant profile the payment processor
// keeps for a connected account. Nil fields are unset.
type BusinessProfile struct {
	BusinessName       *string `json:"business_name"`
	BusinessURL        *string `json:"business_url"`
	SupportEmail       *string `json:"support_email"`
	SupportPhone       *string `json:"support_phone"`
	ProductDescription *string `json:"product_description"`
}

type Seller struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	Status          SellerStatus `json:"status"`
	StripeAccountID *string      `json:"stripe_account_id"`
	BusinessProfile
}

// HasPayoutAccount reports whether the seller can receive funds.
func (s *Seller) HasPayoutAccount() bool {
	return s.StripeAccountID != nil && *s.StripeAccountID != ""
}

type Steward struct {
	ID              string  `json:"id"`
	MemberID        string  `json:"member_id"`
	Email           string  `json:"email"`
	StripeAccountID *string `json:"stripe_account_id"`
}

func (s *Steward) HasPayoutAccount() bool {
	return s.StripeAccountID != nil && *s.StripeAccountID != ""
}

type Chapter struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	StripeAccountID *string `json:"stripe_account_id"`
}

func (c *Chapter) HasPayoutAccount() bool {
	return c.StripeAccountID != nil && *c.StripeAccountID != ""
}
