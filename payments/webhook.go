package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeWebhookVerifier checks the Stripe-Signature header against the
// endpoint secret before any payload field is trusted.
type StripeWebhookVerifier struct {
	secret string
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// VerifyEvent wraps signature failures in ErrInvalidSignature and decode
// failures of a correctly signed payload in ErrMalformedEvent.
func (v *StripeWebhookVerifier) VerifyEvent(payload []byte, signature string) (*Event, error) {
	if err := webhook.ValidatePayload(payload, signature, v.secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	out, err := toEvent(evt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return out, nil
}

func toEvent(evt stripe.Event) (*Event, error) {
	out := &Event{
		ID:        evt.ID,
		Type:      string(evt.Type),
		AccountID: evt.Account,
	}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed, EventCheckoutExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		out.SessionID = cs.ID
		out.PaymentStatus = string(cs.PaymentStatus)
		out.Metadata = cs.Metadata
		if cs.PaymentIntent != nil {
			out.PaymentIntentID = cs.PaymentIntent.ID
		}
		out.CustomerEmail = cs.CustomerEmail
		if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
			out.CustomerEmail = cs.CustomerDetails.Email
		}
	case EventAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(evt.Data.Raw, &acct); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		out.AccountID = acct.ID
	}
	return out, nil
}
