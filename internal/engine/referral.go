package engine

import (
	"context"
	"fmt"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/referral"
	"github.com/shopspring/decimal"
)

// referralBonus is evaluated inside the review transaction.
func (e *Engine) referralBonus(reward decimal.Decimal) decimal.Decimal {
	return referral.Bonus(reward, e.bonusRate)
}

// GetReferralBonusTotal returns the sum of referral bonuses credited to userID.
func (e *Engine) GetReferralBonusTotal(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total, err := e.store.SumEntries(ctx, userID, accounts.EntryKindReferralBonus)
	if err != nil {
		return decimal.Zero, fmt.Errorf("store.SumEntries: %w", err)
	}

	return total, nil
}

func (e *Engine) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	count, err := e.store.CountReferrals(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("store.CountReferrals: %w", err)
	}

	return count, nil
}

func (e *Engine) ReferralBonusRate() decimal.Decimal {
	return e.bonusRate
}
