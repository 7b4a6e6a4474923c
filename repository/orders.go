package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-svc/models"
)

const orderColumns = "id, product_id, buyer_id, amount_cents, stripe_session_id, chapter_id, " +
	"shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_postal_code, shipping_country, " +
	"status, created_at, updated_at"

func scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var buyerID, chapterID sql.NullString
	var line1, line2, city, state, postal, country sql.NullString
	err := row.Scan(&o.ID, &o.ProductID, &buyerID, &o.AmountCents, &o.StripeSessionID, &chapterID,
		&line1, &line2, &city, &state, &postal, &country,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.BuyerID = nullString(buyerID)
	o.ChapterID = nullString(chapterID)
	if line1.Valid {
		o.ShippingAddress = &models.ShippingAddress{
			Line1:      line1.String,
			Line2:      line2.String,
			City:       city.String,
			State:      state.String,
			PostalCode: postal.String,
			Country:    country.String,
		}
	}
	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	addr := order.ShippingAddress
	if addr == nil {
		addr = &models.ShippingAddress{}
	}
	created, err := scanOrder(s.db.QueryRowContext(ctx,
		"INSERT INTO orders (id, product_id, buyer_id, amount_cents, stripe_session_id, chapter_id, "+
			"shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_postal_code, shipping_country, status) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING "+orderColumns,
		order.ID, order.ProductID, toNullString(order.BuyerID), order.AmountCents, order.StripeSessionID,
		toNullString(order.ChapterID),
		toNullString(&addr.Line1), toNullString(&addr.Line2), toNullString(&addr.City),
		toNullString(&addr.State), toNullString(&addr.PostalCode), toNullString(&addr.Country),
		models.OrderStatusPending,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

func (s *Store) GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE stripe_session_id = $1", sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// TransitionOrder moves the order keyed by sessionID from PENDING to the
// given status. ErrConflict means the order is missing or already settled.
func (s *Store) TransitionOrder(ctx context.Context, sessionID string, to models.OrderStatus) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		"UPDATE orders SET status = $2, updated_at = CURRENT_TIMESTAMP "+
			"WHERE stripe_session_id = $1 AND status = $3 RETURNING "+orderColumns,
		sessionID, to, models.OrderStatusPending,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return o, nil
}
