// Package payments wraps the hosted-checkout payment processor: session
// creation with a destination payee, connected-account lookups,
// transfers, and webhook verification.
package payments

import (
	"context"
	"errors"
	"fmt"

	"checkout-svc/apperr"
	"checkout-svc/circuitbreaker"
	"checkout-svc/models"
)

// Session kinds carried in session metadata.
const (
	KindProductOrder = "product_order"
	KindStewardClaim = "steward_claim"
)

// Metadata keys written on sessions and read back by settlement.
const (
	MetaKind             = "kind"
	MetaOrderID          = "order_id"
	MetaProductID        = "product_id"
	MetaBuyerID          = "buyer_id"
	MetaListingID        = "listing_id"
	MetaClaimID          = "claim_id"
	MetaClaimantMemberID = "claimant_member_id"
	MetaChapterID        = "chapter_id"
	MetaChapterAccountID = "chapter_account_id"
	MetaDonationCents    = "chapter_donation_cents"
	MetaPlatformFeeCents = "platform_fee_cents"
	MetaShippingCents    = "shipping_cents"
)

type LineItem struct {
	Name        string
	AmountCents int64
}

// SessionParams describes a hosted payment session. Destination receives
// the funds: either the total minus ApplicationFeeCents, or exactly
// TransferAmountCents when that is set. Without a Destination the
// platform keeps the whole charge.
type SessionParams struct {
	CustomerEmail       string
	LineItems           []LineItem
	Destination         string
	ApplicationFeeCents int64
	TransferAmountCents int64
	TransferGroup       string
	SuccessURL          string
	CancelURL           string
	Metadata            map[string]string
	IdempotencyKey      string
}

func (p SessionParams) TotalCents() int64 {
	var total int64
	for _, li := range p.LineItems {
		total += li.AmountCents
	}
	return total
}

type Session struct {
	ID  string
	URL string
}

type TransferParams struct {
	AmountCents    int64
	Destination    string
	TransferGroup  string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Processor is the subset of the payment processor used by this service.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	GetBusinessProfile(ctx context.Context, accountID string) (*models.BusinessProfile, error)
	CreateTransfer(ctx context.Context, params TransferParams) (string, error)
}

// Event is a verified processor event reduced to the fields settlement needs.
type Event struct {
	ID              string
	Type            string
	SessionID       string
	PaymentStatus   string
	PaymentIntentID string
	CustomerEmail   string
	AccountID       string
	Metadata        map[string]string
}

// Event types handled by settlement.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired       = "checkout.session.expired"
	EventAccountUpdated        = "account.updated"
)

const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// WebhookVerifier authenticates a raw webhook payload.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

var (
	// ErrInvalidSignature is returned for payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for authentic payloads that cannot be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// ProcessorError is a failure reported by the processor itself, as opposed
// to a transport or internal failure.
type ProcessorError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor error (%s): %s", e.Code, e.Message)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// SessionFailure classifies a failed session request for the caller.
func SessionFailure(err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return apperr.Wrap(apperr.KindUnavailable, apperr.CodeServiceUnavailable, "Payments are temporarily unavailable, please retry shortly", err)
	}
	var procErr *ProcessorError
	if errors.As(err, &procErr) {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodePaymentProcessorError, "The payment processor rejected the request", err)
	}
	return apperr.Wrap(apperr.KindUpstream, apperr.CodeCheckoutFailed, "Failed to create checkout session", err)
}
