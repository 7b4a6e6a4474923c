package handlers

import (
	"context"
	"net/http"

	"checkout-svc/apperr"
	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ClaimService interface {
	Claim(ctx context.Context, listingID, memberID string) (*models.StewardListing, error)
	CreateCheckout(ctx context.Context, listingID string, member *models.Member) (*models.CheckoutSessionResponse, error)
	Withdraw(ctx context.Context, listingID, memberID string) (*models.StewardListing, error)
}

// ClaimHandler serves the steward listing routes. Every route runs
// behind middleware.RequireVerifiedMember.
type ClaimHandler struct {
	claims      ClaimService
	development bool
	logger      *zap.Logger
}

func NewClaimHandler(claims ClaimService, development bool, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{claims: claims, development: development, logger: logger}
}

func (h *ClaimHandler) member(c *gin.Context) (*models.Member, bool) {
	m, ok := middleware.MemberFrom(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindForbidden, apperr.CodeNotEligible, "Only verified members can do this"), h.development, h.logger)
	}
	return m, ok
}

func (h *ClaimHandler) Claim(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	listing, err := h.claims.Claim(c.Request.Context(), c.Param("listingId"), m.ID)
	if err != nil {
		respondError(c, err, h.development, h.logger)
		return
	}
	c.JSON(http.StatusOK, models.ClaimResponse{Success: true, Claim: listing})
}

func (h *ClaimHandler) StewardCheckout(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	resp, err := h.claims.CreateCheckout(c.Request.Context(), c.Param("listingId"), m)
	if err != nil {
		respondError(c, err, h.development, h.logger)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClaimHandler) Withdraw(c *gin.Context) {
	m, ok := h.member(c)
	if !ok {
		return
	}

	listing, err := h.claims.Withdraw(c.Request.Context(), c.Param("listingId"), m.ID)
	if err != nil {
		respondError(c, err, h.development, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "listing": listing})
}
