package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-svc/models"
)

const listingColumns = "id, steward_id, sponsoring_chapter_id, name, shipping_cost_cents, chapter_donation_cents, status, claimed_by_member_id, claimed_at"

func scanListing(row *sql.Row) (*models.StewardListing, error) {
	var l models.StewardListing
	var claimedBy sql.NullString
	var claimedAt sql.NullTime
	err := row.Scan(&l.ID, &l.StewardID, &l.ChapterID, &l.Name, &l.ShippingCostCents,
		&l.ChapterDonationCents, &l.Status, &claimedBy, &claimedAt)
	if err != nil {
		return nil, err
	}
	l.ClaimedByMemberID = nullString(claimedBy)
	l.ClaimedAt = nullTime(claimedAt)
	return &l, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*models.StewardListing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		"SELECT "+listingColumns+" FROM steward_listings WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ClaimListing is the compare-and-swap that hands a listing to exactly one
// member. It returns ErrConflict when the listing is no longer ACTIVE.
func (s *Store) ClaimListing(ctx context.Context, listingID, memberID string) (*models.StewardListing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		"UPDATE steward_listings SET status = $3, claimed_by_member_id = $2, claimed_at = NOW() "+
			"WHERE id = $1 AND status = $4 RETURNING "+listingColumns,
		listingID, memberID, models.ListingStatusClaimed, models.ListingStatusActive,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to claim listing: %w", err)
	}
	return l, nil
}

// WithdrawListing moves an ACTIVE listing owned by stewardID to REMOVED.
func (s *Store) WithdrawListing(ctx context.Context, listingID, stewardID string) (*models.StewardListing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		"UPDATE steward_listings SET status = $3 "+
			"WHERE id = $1 AND steward_id = $2 AND status = $4 RETURNING "+listingColumns,
		listingID, stewardID, models.ListingStatusRemoved, models.ListingStatusActive,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to withdraw listing: %w", err)
	}
	return l, nil
}
