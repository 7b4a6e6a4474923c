package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"checkout-svc/circuitbreaker"
	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/transfer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StripeClient implements Processor on top of Stripe Connect destination
// charges.
type StripeClient struct {
	sessions       *session.Client
	accounts       *account.Client
	transfers      *transfer.Client
	currency       string
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewStripeClient(secretKey, currency string, timeout time.Duration, logger *zap.Logger) *StripeClient {
	maxRetries := int64(2)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: &maxRetries,
	})

	return &StripeClient{
		sessions:  &session.Client{B: backend, Key: secretKey},
		accounts:  &account.Client{B: backend, Key: secretKey},
		transfers: &transfer.Client{B: backend, Key: secretKey},
		currency:  currency,
		circuitBreaker: circuitbreaker.New("stripe", circuitbreaker.Options{
			MaxFailures:   5,
			ResetTimeout:  30 * time.Second,
			IsFailure:     isTransientStripeError,
			OnStateChange: middleware.RecordCircuitState,
		}),
		logger: logger,
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "stripe.CreateCheckoutSession")
	defer span.End()

	sp := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{},
	}
	sp.Context = ctx
	if params.Destination != "" {
		sp.PaymentIntentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(params.Destination),
		}
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	for _, li := range params.LineItems {
		sp.LineItems = append(sp.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(c.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.AmountCents),
			},
			Quantity: stripe.Int64(1),
		})
	}
	if params.ApplicationFeeCents > 0 {
		sp.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(params.ApplicationFeeCents)
	}
	if params.TransferAmountCents > 0 && sp.PaymentIntentData.TransferData != nil {
		sp.PaymentIntentData.TransferData.Amount = stripe.Int64(params.TransferAmountCents)
	}
	if params.TransferGroup != "" {
		sp.PaymentIntentData.TransferGroup = stripe.String(params.TransferGroup)
	}
	if len(params.Metadata) > 0 {
		sp.Metadata = params.Metadata
		sp.PaymentIntentData.Metadata = params.Metadata
	}
	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	span.SetAttributes(
		attribute.String("stripe.destination", params.Destination),
		attribute.Int64("amount_cents", params.TotalCents()),
	)

	var cs *stripe.CheckoutSession
	err := c.circuitBreaker.Execute(ctx, func(context.Context) error {
		var err error
		cs, err = c.sessions.New(sp)
		return err
	})
	middleware.RecordProcessorCall("create_checkout_session", err)
	if err != nil {
		span.RecordError(err)
		return nil, translateStripeError(err)
	}

	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

func (c *StripeClient) GetBusinessProfile(ctx context.Context, accountID string) (*models.BusinessProfile, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "stripe.GetAccount")
	defer span.End()

	params := &stripe.AccountParams{}
	params.Context = ctx

	var acct *stripe.Account
	err := c.circuitBreaker.Execute(ctx, func(context.Context) error {
		var err error
		acct, err = c.accounts.GetByID(accountID, params)
		return err
	})
	middleware.RecordProcessorCall("get_account", err)
	if err != nil {
		span.RecordError(err)
		return nil, translateStripeError(err)
	}

	profile := &models.BusinessProfile{}
	if bp := acct.BusinessProfile; bp != nil {
		profile.BusinessName = optional(bp.Name)
		profile.BusinessURL = optional(bp.URL)
		profile.SupportEmail = optional(bp.SupportEmail)
		profile.SupportPhone = optional(bp.SupportPhone)
		profile.ProductDescription = optional(bp.ProductDescription)
	}
	return profile, nil
}

func (c *StripeClient) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "stripe.CreateTransfer")
	defer span.End()

	tp := &stripe.TransferParams{
		Amount:      stripe.Int64(params.AmountCents),
		Currency:    stripe.String(c.currency),
		Destination: stripe.String(params.Destination),
	}
	tp.Context = ctx
	if params.TransferGroup != "" {
		tp.TransferGroup = stripe.String(params.TransferGroup)
	}
	if params.Description != "" {
		tp.Description = stripe.String(params.Description)
	}
	if len(params.Metadata) > 0 {
		tp.Metadata = params.Metadata
	}
	if params.IdempotencyKey != "" {
		tp.SetIdempotencyKey(params.IdempotencyKey)
	}

	var tr *stripe.Transfer
	err := c.circuitBreaker.Execute(ctx, func(context.Context) error {
		var err error
		tr, err = c.transfers.New(tp)
		return err
	})
	middleware.RecordProcessorCall("create_transfer", err)
	if err != nil {
		span.RecordError(err)
		return "", translateStripeError(err)
	}

	span.SetAttributes(attribute.String("stripe.transfer_id", tr.ID))
	return tr.ID, nil
}

// isTransientStripeError counts only server-side and transport failures
// against the breaker; request errors are the caller's problem.
func isTransientStripeError(err error) bool {
	if err == nil {
		return false
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

func translateStripeError(err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return err
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &ProcessorError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
