// Package referral computes the bonus a referrer earns on a referred user's reward.
package referral

import (
	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/shopspring/decimal"
)

// BonusPlaces is the precision bonuses are rounded to.
const BonusPlaces = accounts.AmountPlaces

var ErrRateInvalid = errs.New(errs.ErrInvalidInput, "referral bonus rate must be within [0, 1]")

// Bonus returns reward x rate. Only the direct referrer is paid; bonuses do not cascade.
func Bonus(reward, rate decimal.Decimal) decimal.Decimal {
	return reward.Mul(rate).Round(BonusPlaces)
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrRateInvalid
	}

	return nil
}
