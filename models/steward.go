package models

import "time"

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "ACTIVE"
	ListingStatusClaimed ListingStatus = "CLAIMED"
	ListingStatusRemoved ListingStatus = "REMOVED"
)

type StewardListing struct {
	ID                   string        `json:"id"`
	StewardID            string        `json:"steward_id"`
	ChapterID            string        `json:"sponsoring_chapter_id"`
	Name                 string        `json:"name"`
	ShippingCostCents    int64         `json:"shipping_cost_cents"`
	ChapterDonationCents int64         `json:"chapter_donation_cents"`
	Status               ListingStatus `json:"status"`
	ClaimedByMemberID    *string       `json:"claimed_by_member_id"`
	ClaimedAt            *time.Time    `json:"claimed_at"`
}

type ClaimStatus string

const (
	ClaimStatusPending ClaimStatus = "PENDING"
	ClaimStatusPaid    ClaimStatus = "PAID"
	ClaimStatusFailed  ClaimStatus = "FAILED"
)

type StewardClaim struct {
	ID                   string      `json:"id"`
	ListingID            string      `json:"listing_id"`
	ClaimantMemberID     string      `json:"claimant_member_id"`
	StripeSessionID      string      `json:"stripe_session_id"`
	TotalAmountCents     int64       `json:"total_amount_cents"`
	ShippingCents        int64       `json:"shipping_cents"`
	PlatformFeeCents     int64       `json:"platform_fee_cents"`
	ChapterDonationCents int64       `json:"chapter_donation_cents"`
	Status               ClaimStatus `json:"status"`
	ChapterTransferID    *string     `json:"chapter_transfer_id,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

type ClaimResponse struct {
	Success bool            `json:"success"`
	Claim   *StewardListing `json:"claim"`
}
