// Package fees computes the platform fee charged on steward claims and
// the fixed platform share retained on direct product sales.
package fees

import (
	"context"
	"math"
	"strconv"
	"strings"
)

const (
	SettingPercentage = "steward_platform_fee_percentage"
	SettingFlatCents  = "steward_platform_fee_flat_cents"

	// DefaultPercentage applies when no setting resolves.
	DefaultPercentage = 0.05

	// ProductPlatformFeeRate is the share of a product's price retained by
	// the platform on direct sales. It is not configurable at runtime.
	ProductPlatformFeeRate = 0.08
)

// Config is the resolved fee configuration. Nil fields were absent or invalid.
type Config struct {
	Percentage *float64
	FlatCents  *int64
}

// SettingsReader reads a named platform setting.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// LoadConfig reads fee settings. Values outside their valid range are
// dropped so resolution falls through to the next rule. A read error is
// returned alongside whatever was resolved before it.
func LoadConfig(ctx context.Context, settings SettingsReader) (Config, error) {
	var cfg Config

	raw, ok, err := settings.GetSetting(ctx, SettingPercentage)
	if err != nil {
		return cfg, err
	}
	if ok {
		if p, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil && p > 0 && p <= 1 {
			cfg.Percentage = &p
		}
	}

	raw, ok, err = settings.GetSetting(ctx, SettingFlatCents)
	if err != nil {
		return cfg, err
	}
	if ok {
		if f, ferr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); ferr == nil && f >= 0 {
			cfg.FlatCents = &f
		}
	}

	return cfg, nil
}

// PlatformFee returns the steward-claim platform fee in minor units.
// The first valid rule wins: percentage, then flat, then the default rate.
func PlatformFee(cfg Config, shippingCents, donationCents int64) int64 {
	base := shippingCents + donationCents
	if p := cfg.Percentage; p != nil && *p > 0 && *p <= 1 {
		return roundCents(float64(base) * *p)
	}
	if f := cfg.FlatCents; f != nil && *f >= 0 {
		return *f
	}
	return roundCents(float64(base) * DefaultPercentage)
}

// ProductApplicationFee is the platform share of a direct product sale.
func ProductApplicationFee(priceCents int64) int64 {
	return roundCents(float64(priceCents) * ProductPlatformFeeRate)
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
