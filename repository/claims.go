package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-svc/models"
)

const claimColumns = "id, listing_id, claimant_member_id, stripe_session_id, total_amount_cents, shipping_cents, " +
	"platform_fee_cents, chapter_donation_cents, status, chapter_transfer_id, created_at, updated_at"

func scanClaim(row *sql.Row) (*models.StewardClaim, error) {
	var c models.StewardClaim
	var transferID sql.NullString
	err := row.Scan(&c.ID, &c.ListingID, &c.ClaimantMemberID, &c.StripeSessionID, &c.TotalAmountCents,
		&c.ShippingCents, &c.PlatformFeeCents, &c.ChapterDonationCents, &c.Status, &transferID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ChapterTransferID = nullString(transferID)
	return &c, nil
}

func (s *Store) CreateClaim(ctx context.Context, claim *models.StewardClaim) (*models.StewardClaim, error) {
	created, err := scanClaim(s.db.QueryRowContext(ctx,
		"INSERT INTO steward_claims (id, listing_id, claimant_member_id, stripe_session_id, total_amount_cents, "+
			"shipping_cents, platform_fee_cents, chapter_donation_cents, status) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING "+claimColumns,
		claim.ID, claim.ListingID, claim.ClaimantMemberID, claim.StripeSessionID, claim.TotalAmountCents,
		claim.ShippingCents, claim.PlatformFeeCents, claim.ChapterDonationCents, models.ClaimStatusPending,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create steward claim: %w", err)
	}
	return created, nil
}

// TransitionClaim moves the claim keyed by sessionID out of PENDING.
// ErrConflict means the claim is missing or already settled.
func (s *Store) TransitionClaim(ctx context.Context, sessionID string, to models.ClaimStatus) (*models.StewardClaim, error) {
	c, err := scanClaim(s.db.QueryRowContext(ctx,
		"UPDATE steward_claims SET status = $2, updated_at = CURRENT_TIMESTAMP "+
			"WHERE stripe_session_id = $1 AND status = $3 RETURNING "+claimColumns,
		sessionID, to, models.ClaimStatusPending,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update claim status: %w", err)
	}
	return c, nil
}

// RecordChapterTransfer stores the donation transfer id once per paid claim.
func (s *Store) RecordChapterTransfer(ctx context.Context, claimID, transferID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE steward_claims SET chapter_transfer_id = $2, updated_at = CURRENT_TIMESTAMP "+
			"WHERE id = $1 AND status = $3 AND chapter_transfer_id IS NULL",
		claimID, transferID, models.ClaimStatusPaid,
	)
	if err != nil {
		return fmt.Errorf("failed to record chapter transfer: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record chapter transfer: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}
