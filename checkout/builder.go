// Package checkout builds hosted payment sessions for marketplace
// products and records the pending order before the buyer is redirected.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-svc/apperr"
	"checkout-svc/fees"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/notify"
	"checkout-svc/payments"
	"checkout-svc/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type Store interface {
	GetSeller(ctx context.Context, id string) (*models.Seller, error)
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error)
}

type GuestProvisioner interface {
	Provision(ctx context.Context, email, password string) (*models.User, error)
}

// Request is one purchase attempt. Principal is nil for anonymous callers.
type Request struct {
	ProductID       string
	Principal       *models.Principal
	Email           string
	Password        string
	ShippingCents   *int64
	ShippingAddress *models.ShippingAddress
}

type Builder struct {
	products    ProductReader
	store       Store
	guests      GuestProvisioner
	processor   payments.Processor
	notifier    notify.Notifier
	frontendURL string
	logger      *zap.Logger
}

func NewBuilder(products ProductReader, store Store, guests GuestProvisioner, processor payments.Processor, notifier notify.Notifier, frontendURL string, logger *zap.Logger) *Builder {
	return &Builder{
		products:    products,
		store:       store,
		guests:      guests,
		processor:   processor,
		notifier:    notifier,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// CreateSession validates the purchase, opens a processor session paying
// the seller, and persists a PENDING order keyed by the session id.
func (b *Builder) CreateSession(ctx context.Context, req Request) (*models.CheckoutSessionResponse, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "checkout.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID))

	resp, err := b.createSession(ctx, req)
	outcome := "created"
	if err != nil {
		span.RecordError(err)
		outcome = apperr.CodeInternal
		if appErr, ok := apperr.As(err); ok {
			outcome = appErr.Code
		}
	}
	middleware.RecordCheckoutSession(payments.KindProductOrder, outcome)
	return resp, err
}

func (b *Builder) createSession(ctx context.Context, req Request) (*models.CheckoutSessionResponse, error) {
	traceID := middleware.GetTraceID(ctx)

	if (req.Email == "") != (req.Password == "") {
		return nil, apperr.Validation("Email and password must be provided together")
	}
	var shipping int64
	if req.ShippingCents != nil {
		shipping = *req.ShippingCents
	}
	if shipping < 0 {
		return nil, apperr.Validation("Shipping cost cannot be negative")
	}
	if (req.ShippingCents == nil) != (req.ShippingAddress == nil) {
		return nil, apperr.Validation("Shipping cost and shipping address must be provided together")
	}
	// Orders only persist an address that has a first line.
	if req.ShippingAddress != nil && strings.TrimSpace(req.ShippingAddress.Line1) == "" {
		return nil, apperr.Validation("Shipping address line 1 is required")
	}

	product, err := b.products.GetProduct(ctx, req.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeProductNotFound, "Product not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// Guest credentials never satisfy the branded gate.
	if product.IsBranded && req.Principal == nil {
		return nil, apperr.New(apperr.KindUnauthorized, apperr.CodeAuthRequiredBranded,
			"Sign in as a verified member to purchase branded merchandise")
	}

	if product.PriceCents <= 0 {
		return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPrice, "Product has no valid price")
	}

	seller, err := b.store.GetSeller(ctx, product.SellerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindState, apperr.CodeSellerNotApproved, "This seller is not accepting orders")
		}
		return nil, apperr.Internal(err)
	}
	if seller.Status != models.SellerStatusApproved {
		return nil, apperr.New(apperr.KindState, apperr.CodeSellerNotApproved, "This seller is not accepting orders")
	}
	if !seller.HasPayoutAccount() {
		b.logger.Warn("Seller has no payout account, pausing checkout",
			zap.String("trace_id", traceID),
			zap.String("seller_id", seller.ID),
			zap.String("product_id", product.ID),
		)
		b.notifyPaused(ctx, seller, product, buyerEmail(req))
		return nil, apperr.New(apperr.KindState, apperr.CodeStripeNotConnected,
			"This item is temporarily unavailable. The seller has been notified.")
	}

	buyer, err := b.resolveBuyer(ctx, req)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	amount := product.PriceCents + shipping
	lineItems := []payments.LineItem{{Name: product.Name, AmountCents: product.PriceCents}}
	if shipping > 0 {
		lineItems = append(lineItems, payments.LineItem{Name: "Shipping", AmountCents: shipping})
	}

	session, err := b.processor.CreateCheckoutSession(ctx, payments.SessionParams{
		CustomerEmail:       buyer.Email,
		LineItems:           lineItems,
		Destination:         *seller.StripeAccountID,
		ApplicationFeeCents: fees.ProductApplicationFee(product.PriceCents),
		SuccessURL:          b.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:           b.frontendURL + "/products/" + product.ID,
		IdempotencyKey:      "checkout-" + orderID,
		Metadata: map[string]string{
			payments.MetaKind:      payments.KindProductOrder,
			payments.MetaOrderID:   orderID,
			payments.MetaProductID: product.ID,
			payments.MetaBuyerID:   buyer.ID,
		},
	})
	if err != nil {
		b.logger.Error("Failed to create checkout session",
			zap.String("trace_id", traceID),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
		return nil, payments.SessionFailure(err)
	}

	// The order must exist before the buyer can reach the payment page.
	buyerID := buyer.ID
	_, err = b.store.CreateOrder(ctx, &models.Order{
		ID:              orderID,
		ProductID:       product.ID,
		BuyerID:         &buyerID,
		AmountCents:     amount,
		StripeSessionID: session.ID,
		ChapterID:       product.ChapterID,
		ShippingAddress: req.ShippingAddress,
		Status:          models.OrderStatusPending,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, apperr.CodeCheckoutFailed, "Failed to record order", err)
	}

	b.logger.Info("Checkout session created",
		zap.String("trace_id", traceID),
		zap.String("order_id", orderID),
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", amount),
	)
	return &models.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (b *Builder) resolveBuyer(ctx context.Context, req Request) (*models.User, error) {
	if req.Principal != nil {
		user, err := b.store.GetUserBySubject(ctx, req.Principal.Subject)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindUnauthorized, apperr.CodeAuthRequired, "Account not found, please sign in again")
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		return user, nil
	}
	if req.Email == "" {
		return nil, apperr.New(apperr.KindUnauthorized, apperr.CodeAuthRequired, "Sign in or provide an email and password to check out")
	}
	return b.guests.Provision(ctx, req.Email, req.Password)
}

func (b *Builder) notifyPaused(ctx context.Context, seller *models.Seller, product *models.Product, buyer string) {
	b.notifier.Notify(ctx, models.NotificationEvent{
		EventType: models.NotifySellerOnboardingRequired,
		Recipient: seller.Email,
		Payload: map[string]string{
			"seller_id":    seller.ID,
			"product_id":   product.ID,
			"product_name": product.Name,
		},
	})
	b.notifier.Notify(ctx, models.NotificationEvent{
		EventType: models.NotifyBuyerItemPaused,
		Recipient: buyer,
		Payload: map[string]string{
			"product_id":   product.ID,
			"product_name": product.Name,
		},
	})
}

// GetSession returns the order behind a processor session together with
// the product it was placed for.
func (b *Builder) GetSession(ctx context.Context, sessionID string) (*models.OrderSnapshot, error) {
	order, err := b.store.GetOrderBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeSessionNotFound, "Checkout session not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	product, err := b.products.GetProduct(ctx, order.ProductID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load product for order %s: %w", order.ID, err))
	}
	return &models.OrderSnapshot{Order: *order, Product: *product}, nil
}

func buyerEmail(req Request) string {
	if req.Principal != nil && req.Principal.Email != "" {
		return req.Principal.Email
	}
	return req.Email
}
