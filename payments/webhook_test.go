package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestStripeWebhookVerifier_CheckoutCompleted(t *testing.T) {
	header, body := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": "paid",
			"payment_intent": "pi_1",
			"customer_email": "buyer@example.com",
			"metadata": {"kind": "steward_claim", "claim_id": "claim-1"}
		}}
	}`)

	evt, err := NewStripeWebhookVerifier(testSecret).VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, "cs_test_1", evt.SessionID)
	assert.Equal(t, PaymentStatusPaid, evt.PaymentStatus)
	assert.Equal(t, "pi_1", evt.PaymentIntentID)
	assert.Equal(t, "buyer@example.com", evt.CustomerEmail)
	assert.Equal(t, KindStewardClaim, evt.Metadata[MetaKind])
}

func TestStripeWebhookVerifier_AccountUpdated(t *testing.T) {
	header, body := signed(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "account.updated",
		"data": {"object": {"id": "acct_123", "object": "account"}}
	}`)

	evt, err := NewStripeWebhookVerifier(testSecret).VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", evt.AccountID)
}

func TestStripeWebhookVerifier_RejectsBadSignature(t *testing.T) {
	header, body := signed(t, `{"id": "evt_3", "object": "event", "type": "account.updated", "data": {"object": {}}}`)

	_, err := NewStripeWebhookVerifier("whsec_other").VerifyEvent(body, header)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	_, err = NewStripeWebhookVerifier(testSecret).VerifyEvent(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeWebhookVerifier_MalformedAfterVerification(t *testing.T) {
	header, body := signed(t, `{
		"id": "evt_4",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_4", "object": "checkout.session", "amount_total": "not-a-number"}}
	}`)

	_, err := NewStripeWebhookVerifier(testSecret).VerifyEvent(body, header)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.False(t, errors.Is(err, ErrInvalidSignature))
}

func TestSessionParams_TotalCents(t *testing.T) {
	p := SessionParams{LineItems: []LineItem{{Name: "Shipping", AmountCents: 1000}, {Name: "Fee", AmountCents: 75}, {Name: "Donation", AmountCents: 500}}}
	assert.Equal(t, int64(1575), p.TotalCents())
}
