// Package settlement applies verified payment processor events to local
// state. Every transition is a conditional update, so replayed or
// reordered deliveries are harmless.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/notify"
	"checkout-svc/payments"
	"checkout-svc/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Store interface {
	TransitionOrder(ctx context.Context, sessionID string, to models.OrderStatus) (*models.Order, error)
	TransitionClaim(ctx context.Context, sessionID string, to models.ClaimStatus) (*models.StewardClaim, error)
	GetSellerByStripeAccount(ctx context.Context, accountID string) (*models.Seller, error)
	FillBusinessProfile(ctx context.Context, sellerID string, profile models.BusinessProfile) error
}

// EventLedger remembers processed event ids across deliveries.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

type Processor struct {
	store           Store
	processor       payments.Processor
	ledger          EventLedger
	publisher       EventPublisher
	settlementTopic string
	notifier        notify.Notifier
	logger          *zap.Logger
}

func NewProcessor(store Store, processor payments.Processor, ledger EventLedger, publisher EventPublisher, settlementTopic string, notifier notify.Notifier, logger *zap.Logger) *Processor {
	return &Processor{
		store:           store,
		processor:       processor,
		ledger:          ledger,
		publisher:       publisher,
		settlementTopic: settlementTopic,
		notifier:        notifier,
		logger:          logger,
	}
}

// Handle applies one verified event. The returned error is for
// operational visibility only; callers acknowledge the delivery anyway.
func (p *Processor) Handle(ctx context.Context, evt *payments.Event) error {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "settlement.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", evt.ID),
		attribute.String("event.type", evt.Type),
	)

	if p.alreadyProcessed(ctx, evt.ID) {
		middleware.RecordWebhookEvent(evt.Type, "duplicate")
		return nil
	}

	result, err := p.dispatch(ctx, evt)
	if err != nil {
		span.RecordError(err)
		middleware.RecordWebhookEvent(evt.Type, "error")
		return err
	}
	middleware.RecordWebhookEvent(evt.Type, result)

	if p.ledger != nil && evt.ID != "" {
		if err := p.ledger.Mark(ctx, evt.ID); err != nil {
			p.logger.Debug("Failed to mark webhook event", zap.String("event_id", evt.ID), zap.Error(err))
		}
	}
	return nil
}

func (p *Processor) alreadyProcessed(ctx context.Context, eventID string) bool {
	if p.ledger == nil || eventID == "" {
		return false
	}
	seen, err := p.ledger.Seen(ctx, eventID)
	if err != nil {
		p.logger.Warn("Webhook event ledger unavailable", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return seen
}

func (p *Processor) dispatch(ctx context.Context, evt *payments.Event) (string, error) {
	switch evt.Type {
	case payments.EventCheckoutCompleted:
		// Delayed payment methods complete the session unpaid and settle
		// later through async_payment_succeeded.
		if evt.PaymentStatus != payments.PaymentStatusPaid && evt.PaymentStatus != payments.PaymentStatusNoPaymentRequired {
			return "awaiting_payment", nil
		}
		return p.settle(ctx, evt, true)
	case payments.EventAsyncPaymentSucceeded:
		return p.settle(ctx, evt, true)
	case payments.EventAsyncPaymentFailed, payments.EventCheckoutExpired:
		return p.settle(ctx, evt, false)
	case payments.EventAccountUpdated:
		p.enrichSeller(ctx, evt.AccountID)
		return "processed", nil
	default:
		return "ignored", nil
	}
}

func (p *Processor) settle(ctx context.Context, evt *payments.Event, paid bool) (string, error) {
	if evt.SessionID == "" {
		return "ignored", nil
	}
	if evt.Metadata[payments.MetaKind] == payments.KindStewardClaim {
		return p.settleClaim(ctx, evt, paid)
	}
	return p.settleOrder(ctx, evt, paid)
}

func (p *Processor) settleOrder(ctx context.Context, evt *payments.Event, paid bool) (string, error) {
	traceID := middleware.GetTraceID(ctx)
	to := models.OrderStatusFailed
	if paid {
		to = models.OrderStatusPaid
	}

	order, err := p.store.TransitionOrder(ctx, evt.SessionID, to)
	if errors.Is(err, repository.ErrConflict) {
		p.logger.Info("Order already settled or unknown, skipping",
			zap.String("trace_id", traceID),
			zap.String("session_id", evt.SessionID),
			zap.String("event_id", evt.ID),
		)
		return "noop", nil
	}
	if err != nil {
		return "", fmt.Errorf("transition order %s: %w", evt.SessionID, err)
	}

	p.logger.Info("Order settled",
		zap.String("trace_id", traceID),
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	if !paid {
		return "failed", nil
	}

	p.notifier.Notify(ctx, models.NotificationEvent{
		EventType: models.NotifyOrderPaid,
		Recipient: evt.CustomerEmail,
		Payload: map[string]string{
			"order_id":     order.ID,
			"product_id":   order.ProductID,
			"amount_cents": strconv.FormatInt(order.AmountCents, 10),
		},
	})
	p.publish(ctx, order.ID, models.SettlementEvent{
		EventType:        models.SettlementOrderPaid,
		SessionID:        evt.SessionID,
		OrderID:          order.ID,
		PaymentIntentID:  evt.PaymentIntentID,
		ProcessorEventID: evt.ID,
	})
	return "paid", nil
}

func (p *Processor) settleClaim(ctx context.Context, evt *payments.Event, paid bool) (string, error) {
	traceID := middleware.GetTraceID(ctx)
	to := models.ClaimStatusFailed
	if paid {
		to = models.ClaimStatusPaid
	}

	claim, err := p.store.TransitionClaim(ctx, evt.SessionID, to)
	if errors.Is(err, repository.ErrConflict) {
		p.logger.Info("Claim already settled or unknown, skipping",
			zap.String("trace_id", traceID),
			zap.String("session_id", evt.SessionID),
			zap.String("event_id", evt.ID),
		)
		return "noop", nil
	}
	if err != nil {
		return "", fmt.Errorf("transition claim %s: %w", evt.SessionID, err)
	}

	p.logger.Info("Steward claim settled",
		zap.String("trace_id", traceID),
		zap.String("claim_id", claim.ID),
		zap.String("status", string(claim.Status)),
	)
	if !paid {
		return "failed", nil
	}

	p.notifier.Notify(ctx, models.NotificationEvent{
		EventType: models.NotifyClaimPaid,
		Recipient: evt.CustomerEmail,
		Payload: map[string]string{
			"claim_id":    claim.ID,
			"listing_id":  claim.ListingID,
			"total_cents": strconv.FormatInt(claim.TotalAmountCents, 10),
		},
	})
	// TODO: sweep PAID claims with no chapter_transfer_id and republish,
	// since a failed publish here is not retried.
	p.publish(ctx, claim.ID, models.SettlementEvent{
		EventType:        models.SettlementStewardClaimPaid,
		SessionID:        evt.SessionID,
		ClaimID:          claim.ID,
		ChapterID:        evt.Metadata[payments.MetaChapterID],
		ChapterAccountID: evt.Metadata[payments.MetaChapterAccountID],
		DonationCents:    claim.ChapterDonationCents,
		PaymentIntentID:  evt.PaymentIntentID,
		ProcessorEventID: evt.ID,
	})
	return "paid", nil
}

func (p *Processor) publish(ctx context.Context, key string, event models.SettlementEvent) {
	if err := p.publisher.Publish(ctx, p.settlementTopic, key, event); err != nil {
		p.logger.Error("Failed to publish settlement event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", event.EventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// enrichSeller copies the processor's business profile into empty local
// fields. Failures are logged only.
func (p *Processor) enrichSeller(ctx context.Context, accountID string) {
	traceID := middleware.GetTraceID(ctx)
	if accountID == "" {
		return
	}

	seller, err := p.store.GetSellerByStripeAccount(ctx, accountID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			p.logger.Warn("Failed to load seller for account update",
				zap.String("trace_id", traceID),
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
		return
	}

	remote, err := p.processor.GetBusinessProfile(ctx, accountID)
	if err != nil {
		p.logger.Warn("Failed to fetch business profile",
			zap.String("trace_id", traceID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return
	}

	missing := MissingFields(seller.BusinessProfile, *remote)
	if missing == (models.BusinessProfile{}) {
		return
	}
	if err := p.store.FillBusinessProfile(ctx, seller.ID, missing); err != nil {
		p.logger.Warn("Failed to enrich seller profile",
			zap.String("trace_id", traceID),
			zap.String("seller_id", seller.ID),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("Seller profile enriched", zap.String("trace_id", traceID), zap.String("seller_id", seller.ID))
}

// MissingFields returns the remote values for fields that are empty
// locally. Fields already set locally are left nil.
func MissingFields(local, remote models.BusinessProfile) models.BusinessProfile {
	pick := func(l, r *string) *string {
		if l != nil && *l != "" {
			return nil
		}
		if r == nil || *r == "" {
			return nil
		}
		return r
	}
	return models.BusinessProfile{
		BusinessName:       pick(local.BusinessName, remote.BusinessName),
		BusinessURL:        pick(local.BusinessURL, remote.BusinessURL),
		SupportEmail:       pick(local.SupportEmail, remote.SupportEmail),
		SupportPhone:       pick(local.SupportPhone, remote.SupportPhone),
		ProductDescription: pick(local.ProductDescription, remote.ProductDescription),
	}
}
