package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"checkout-svc/apperr"
	"checkout-svc/middleware"
	"checkout-svc/payments"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

type EventHandler interface {
	Handle(ctx context.Context, evt *payments.Event) error
}

type WebhookHandler struct {
	verifier payments.WebhookVerifier
	events   EventHandler
	logger   *zap.Logger
}

func NewWebhookHandler(verifier payments.WebhookVerifier, events EventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, events: events, logger: logger}
}

// PaymentWebhook handles POST /webhooks/payment. Once the signature
// checks out the delivery is always acknowledged.
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	traceID := middleware.GetTraceID(c.Request.Context())

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable request body", "code": apperr.CodeValidation})
		return
	}

	evt, err := h.verifier.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payments.ErrInvalidSignature) {
		h.logger.Warn("Rejected webhook", zap.String("trace_id", traceID), zap.Error(err))
		middleware.RecordWebhookEvent("unknown", "invalid_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature", "code": apperr.CodeInvalidSignature})
		return
	}
	if err != nil {
		// Signed but undecodable events are still acknowledged.
		h.logger.Error("Failed to decode webhook event", zap.String("trace_id", traceID), zap.Error(err))
		middleware.RecordWebhookEvent("unknown", "malformed")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.events.Handle(c.Request.Context(), evt); err != nil {
		h.logger.Error("Failed to process webhook event",
			zap.String("trace_id", traceID),
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
