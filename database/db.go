package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// schema is applied on startup. Catalog tables are normally owned by the
// marketplace API; they are created here so the service can boot alone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		auth_subject VARCHAR(255) UNIQUE NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'GUEST',
		member_id UUID,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		email VARCHAR(255) NOT NULL,
		verification_status VARCHAR(20) NOT NULL DEFAULT 'PENDING'
	)`,
	`CREATE TABLE IF NOT EXISTS identity_accounts (
		subject UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		tier VARCHAR(20) NOT NULL DEFAULT 'guest',
		email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sellers (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		stripe_account_id VARCHAR(255) UNIQUE,
		business_name VARCHAR(255),
		business_url VARCHAR(512),
		support_email VARCHAR(255),
		support_phone VARCHAR(64),
		product_description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		seller_id UUID NOT NULL REFERENCES sellers(id),
		name VARCHAR(255) NOT NULL,
		price_cents BIGINT NOT NULL,
		is_kappa_branded BOOLEAN NOT NULL DEFAULT FALSE,
		image_url VARCHAR(512),
		sponsoring_chapter_id UUID
	)`,
	`CREATE TABLE IF NOT EXISTS chapters (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		stripe_account_id VARCHAR(255)
	)`,
	`CREATE TABLE IF NOT EXISTS stewards (
		id UUID PRIMARY KEY,
		member_id UUID NOT NULL,
		email VARCHAR(255) NOT NULL,
		stripe_account_id VARCHAR(255)
	)`,
	`CREATE TABLE IF NOT EXISTS steward_listings (
		id UUID PRIMARY KEY,
		steward_id UUID NOT NULL REFERENCES stewards(id),
		sponsoring_chapter_id UUID NOT NULL REFERENCES chapters(id),
		name VARCHAR(255) NOT NULL,
		shipping_cost_cents BIGINT NOT NULL DEFAULT 0,
		chapter_donation_cents BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
		claimed_by_member_id UUID,
		claimed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		buyer_id UUID,
		amount_cents BIGINT NOT NULL,
		stripe_session_id VARCHAR(255) UNIQUE NOT NULL,
		chapter_id UUID,
		shipping_line1 VARCHAR(255),
		shipping_line2 VARCHAR(255),
		shipping_city VARCHAR(255),
		shipping_state VARCHAR(64),
		shipping_postal_code VARCHAR(32),
		shipping_country VARCHAR(64),
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS steward_claims (
		id UUID PRIMARY KEY,
		listing_id UUID NOT NULL REFERENCES steward_listings(id),
		claimant_member_id UUID NOT NULL,
		stripe_session_id VARCHAR(255) UNIQUE NOT NULL,
		total_amount_cents BIGINT NOT NULL,
		shipping_cents BIGINT NOT NULL,
		platform_fee_cents BIGINT NOT NULL,
		chapter_donation_cents BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		chapter_transfer_id VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS platform_settings (
		key VARCHAR(255) PRIMARY KEY,
		value TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

func InitDB(dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("Database connection established")
	return db, nil
}

// Migrate creates missing tables.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
