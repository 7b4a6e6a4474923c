// Package claims hands steward listings to verified members and opens
// the payment session that covers shipping, platform fee and the
// sponsoring chapter's donation.
package claims

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"checkout-svc/apperr"
	"checkout-svc/fees"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/payments"
	"checkout-svc/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ListingStore interface {
	GetListing(ctx context.Context, id string) (*models.StewardListing, error)
	ClaimListing(ctx context.Context, listingID, memberID string) (*models.StewardListing, error)
	WithdrawListing(ctx context.Context, listingID, stewardID string) (*models.StewardListing, error)
	GetChapter(ctx context.Context, id string) (*models.Chapter, error)
	GetSteward(ctx context.Context, id string) (*models.Steward, error)
	GetStewardByMember(ctx context.Context, memberID string) (*models.Steward, error)
	CreateClaim(ctx context.Context, claim *models.StewardClaim) (*models.StewardClaim, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

type Controller struct {
	store       ListingStore
	processor   payments.Processor
	frontendURL string
	logger      *zap.Logger
}

func NewController(store ListingStore, processor payments.Processor, frontendURL string, logger *zap.Logger) *Controller {
	return &Controller{
		store:       store,
		processor:   processor,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// Claim atomically moves an ACTIVE listing to CLAIMED for memberID.
// Concurrent callers race on a single conditional update; losers get
// LISTING_UNAVAILABLE.
func (c *Controller) Claim(ctx context.Context, listingID, memberID string) (*models.StewardListing, error) {
	listing, err := c.store.ClaimListing(ctx, listingID, memberID)
	if err == nil {
		middleware.RecordListingClaim("claimed")
		c.logger.Info("Listing claimed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("listing_id", listingID),
			zap.String("member_id", memberID),
		)
		return listing, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		middleware.RecordListingClaim("error")
		return nil, apperr.Internal(err)
	}

	middleware.RecordListingClaim("conflict")
	if _, lerr := c.store.GetListing(ctx, listingID); errors.Is(lerr, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeListingNotFound, "Listing not found")
	}
	return nil, apperr.New(apperr.KindConflict, apperr.CodeListingUnavailable, "This listing is no longer available")
}

// CreateCheckout opens the payment session for a listing and records a
// PENDING claim. An ACTIVE listing is claimed for member first. Only shipping is transferred to the steward; the fee
// and donation stay with the platform and the donation is earmarked for
// the chapter in session metadata.
func (c *Controller) CreateCheckout(ctx context.Context, listingID string, member *models.Member) (*models.CheckoutSessionResponse, error) {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "claims.CreateCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("listing.id", listingID))

	resp, err := c.createCheckout(ctx, listingID, member)
	outcome := "created"
	if err != nil {
		span.RecordError(err)
		outcome = apperr.CodeInternal
		if appErr, ok := apperr.As(err); ok {
			outcome = appErr.Code
		}
	}
	middleware.RecordCheckoutSession(payments.KindStewardClaim, outcome)
	return resp, err
}

func (c *Controller) createCheckout(ctx context.Context, listingID string, member *models.Member) (*models.CheckoutSessionResponse, error) {
	traceID := middleware.GetTraceID(ctx)

	listing, err := c.store.GetListing(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeListingNotFound, "Listing not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	switch listing.Status {
	case models.ListingStatusActive:
	case models.ListingStatusClaimed:
		// A claimant may re-open payment for their own claim.
		if listing.ClaimedByMemberID == nil || *listing.ClaimedByMemberID != member.ID {
			return nil, apperr.New(apperr.KindConflict, apperr.CodeListingUnavailable, "This listing has been claimed by another member")
		}
	default:
		return nil, apperr.New(apperr.KindState, apperr.CodeListingNotClaimable, "This listing can no longer be claimed")
	}

	chapter, err := c.store.GetChapter(ctx, listing.ChapterID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if chapter == nil || !chapter.HasPayoutAccount() {
		return nil, apperr.New(apperr.KindState, apperr.CodeChapterNotConnected,
			"The sponsoring chapter cannot receive donations yet. Please contact an admin.")
	}

	steward, err := c.store.GetSteward(ctx, listing.StewardID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if steward == nil || !steward.HasPayoutAccount() {
		return nil, apperr.New(apperr.KindState, apperr.CodeStewardNotConnected,
			"The steward cannot receive shipping reimbursement yet. Please contact an admin.")
	}

	// A session is only ever issued to the listing's claimant.
	if listing.Status == models.ListingStatusActive {
		if listing, err = c.Claim(ctx, listing.ID, member.ID); err != nil {
			return nil, err
		}
	}

	feeCfg, err := fees.LoadConfig(ctx, c.store)
	if err != nil {
		c.logger.Warn("Failed to read fee settings, using defaults",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	}
	shipping := listing.ShippingCostCents
	donation := listing.ChapterDonationCents
	fee := fees.PlatformFee(feeCfg, shipping, donation)
	total := shipping + fee + donation

	claimID := uuid.NewString()
	params := payments.SessionParams{
		CustomerEmail:  member.Email,
		LineItems:      lineItems(listing.Name, shipping, fee, donation),
		TransferGroup:  claimID,
		SuccessURL:     c.frontendURL + "/steward-checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      c.frontendURL + "/steward-listings/" + listing.ID,
		IdempotencyKey: "steward-claim-" + claimID,
		Metadata: map[string]string{
			payments.MetaKind:             payments.KindStewardClaim,
			payments.MetaClaimID:          claimID,
			payments.MetaListingID:        listing.ID,
			payments.MetaClaimantMemberID: member.ID,
			payments.MetaChapterID:        chapter.ID,
			payments.MetaChapterAccountID: *chapter.StripeAccountID,
			payments.MetaDonationCents:    strconv.FormatInt(donation, 10),
			payments.MetaPlatformFeeCents: strconv.FormatInt(fee, 10),
			payments.MetaShippingCents:    strconv.FormatInt(shipping, 10),
		},
	}
	if shipping > 0 {
		params.Destination = *steward.StripeAccountID
		params.TransferAmountCents = shipping
	}

	session, err := c.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		c.logger.Error("Failed to create steward checkout session",
			zap.String("trace_id", traceID),
			zap.String("listing_id", listing.ID),
			zap.Error(err),
		)
		return nil, payments.SessionFailure(err)
	}

	_, err = c.store.CreateClaim(ctx, &models.StewardClaim{
		ID:                   claimID,
		ListingID:            listing.ID,
		ClaimantMemberID:     member.ID,
		StripeSessionID:      session.ID,
		TotalAmountCents:     total,
		ShippingCents:        shipping,
		PlatformFeeCents:     fee,
		ChapterDonationCents: donation,
		Status:               models.ClaimStatusPending,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, apperr.CodeCheckoutFailed, "Failed to record claim", err)
	}

	c.logger.Info("Steward checkout session created",
		zap.String("trace_id", traceID),
		zap.String("claim_id", claimID),
		zap.String("session_id", session.ID),
		zap.Int64("total_cents", total),
		zap.Int64("platform_fee_cents", fee),
	)
	return &models.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL}, nil
}

func lineItems(name string, shipping, fee, donation int64) []payments.LineItem {
	var items []payments.LineItem
	for _, li := range []payments.LineItem{
		{Name: "Shipping: " + name, AmountCents: shipping},
		{Name: "Platform fee", AmountCents: fee},
		{Name: "Chapter donation", AmountCents: donation},
	} {
		if li.AmountCents > 0 {
			items = append(items, li)
		}
	}
	return items
}

// Withdraw lets the owning steward take an ACTIVE listing off the board.
func (c *Controller) Withdraw(ctx context.Context, listingID, memberID string) (*models.StewardListing, error) {
	steward, err := c.store.GetStewardByMember(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindForbidden, apperr.CodeNotEligible, "Only the listing's steward can withdraw it")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	listing, err := c.store.WithdrawListing(ctx, listingID, steward.ID)
	if err == nil {
		c.logger.Info("Listing withdrawn",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("listing_id", listingID),
			zap.String("steward_id", steward.ID),
		)
		return listing, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, apperr.Internal(err)
	}

	current, lerr := c.store.GetListing(ctx, listingID)
	switch {
	case errors.Is(lerr, repository.ErrNotFound):
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeListingNotFound, "Listing not found")
	case lerr != nil:
		return nil, apperr.Internal(lerr)
	case current.StewardID != steward.ID:
		return nil, apperr.New(apperr.KindForbidden, apperr.CodeNotEligible, "Only the listing's steward can withdraw it")
	default:
		return nil, apperr.New(apperr.KindConflict, apperr.CodeListingUnavailable, "Only active listings can be withdrawn")
	}
}
