package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"checkout-svc/apperr"
	"checkout-svc/checkout"
	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionBuilder interface {
	CreateSession(ctx context.Context, req checkout.Request) (*models.CheckoutSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*models.OrderSnapshot, error)
}

type CheckoutHandler struct {
	builder     SessionBuilder
	development bool
	logger      *zap.Logger
}

func NewCheckoutHandler(builder SessionBuilder, development bool, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{builder: builder, development: development, logger: logger}
}

// CreateCheckout handles POST /checkout/:productId. The body is optional.
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperr.Validation("Invalid request body"), h.development, h.logger)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	resp, err := h.builder.CreateSession(c.Request.Context(), checkout.Request{
		ProductID:       c.Param("productId"),
		Principal:       principal,
		Email:           req.Email,
		Password:        req.Password,
		ShippingCents:   req.ShippingCents,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondError(c, err, h.development, h.logger)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession handles GET /checkout/session/:sessionId.
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	snap, err := h.builder.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err, h.development, h.logger)
		return
	}
	c.JSON(http.StatusOK, snap)
}
