package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-svc/models"
)

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	var imageURL, chapterID sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, seller_id, name, price_cents, is_kappa_branded, image_url, sponsoring_chapter_id FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.IsBranded, &imageURL, &chapterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.ImageURL = nullString(imageURL)
	p.ChapterID = nullString(chapterID)
	return &p, nil
}

const sellerColumns = "id, email, name, status, stripe_account_id, business_name, business_url, support_email, support_phone, product_description"

func scanSeller(row *sql.Row) (*models.Seller, error) {
	var sl models.Seller
	var account, name, url, email, phone, desc sql.NullString
	err := row.Scan(&sl.ID, &sl.Email, &sl.Name, &sl.Status, &account, &name, &url, &email, &phone, &desc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sl.StripeAccountID = nullString(account)
	sl.BusinessName = nullString(name)
	sl.BusinessURL = nullString(url)
	sl.SupportEmail = nullString(email)
	sl.SupportPhone = nullString(phone)
	sl.ProductDescription = nullString(desc)
	return &sl, nil
}

func (s *Store) GetSeller(ctx context.Context, id string) (*models.Seller, error) {
	sl, err := scanSeller(s.db.QueryRowContext(ctx,
		"SELECT "+sellerColumns+" FROM sellers WHERE id = $1", id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return sl, err
}

func (s *Store) GetSellerByStripeAccount(ctx context.Context, accountID string) (*models.Seller, error) {
	sl, err := scanSeller(s.db.QueryRowContext(ctx,
		"SELECT "+sellerColumns+" FROM sellers WHERE stripe_account_id = $1", accountID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get seller by account: %w", err)
	}
	return sl, err
}

// FillBusinessProfile writes profile values only into columns that are
// currently NULL or empty. Populated columns are never overwritten.
func (s *Store) FillBusinessProfile(ctx context.Context, sellerID string, profile models.BusinessProfile) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sellers SET
			business_name = COALESCE(NULLIF(business_name, ''), $2),
			business_url = COALESCE(NULLIF(business_url, ''), $3),
			support_email = COALESCE(NULLIF(support_email, ''), $4),
			support_phone = COALESCE(NULLIF(support_phone, ''), $5),
			product_description = COALESCE(NULLIF(product_description, ''), $6)
		WHERE id = $1`,
		sellerID,
		toNullString(profile.BusinessName),
		toNullString(profile.BusinessURL),
		toNullString(profile.SupportEmail),
		toNullString(profile.SupportPhone),
		toNullString(profile.ProductDescription),
	)
	if err != nil {
		return fmt.Errorf("failed to fill business profile: %w", err)
	}
	return nil
}

func (s *Store) GetSteward(ctx context.Context, id string) (*models.Steward, error) {
	var st models.Steward
	var account sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, member_id, email, stripe_account_id FROM stewards WHERE id = $1",
		id,
	).Scan(&st.ID, &st.MemberID, &st.Email, &account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get steward: %w", err)
	}
	st.StripeAccountID = nullString(account)
	return &st, nil
}

func (s *Store) GetStewardByMember(ctx context.Context, memberID string) (*models.Steward, error) {
	var st models.Steward
	var account sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, member_id, email, stripe_account_id FROM stewards WHERE member_id = $1",
		memberID,
	).Scan(&st.ID, &st.MemberID, &st.Email, &account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get steward by member: %w", err)
	}
	st.StripeAccountID = nullString(account)
	return &st, nil
}

func (s *Store) GetChapter(ctx context.Context, id string) (*models.Chapter, error) {
	var ch models.Chapter
	var account sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, stripe_account_id FROM chapters WHERE id = $1",
		id,
	).Scan(&ch.ID, &ch.Name, &account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	ch.StripeAccountID = nullString(account)
	return &ch, nil
}
