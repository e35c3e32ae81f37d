package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryKindReward        EntryKind = "reward"
	EntryKindReferralBonus EntryKind = "referral_bonus"
	EntryKindWithdrawal    EntryKind = "withdrawal"
)

func (k EntryKind) String() string {
	return string(k)
}

// Entry records a single balance movement. Amount is signed.
type Entry struct {
	UserID       int64
	Kind         EntryKind
	Amount       decimal.Decimal
	SubmissionID *int64
	WithdrawalID *int64
	CreatedAt    time.Time
}

func NewRewardEntry(userID int64, amount decimal.Decimal, submissionID int64, now time.Time) Entry {
	return Entry{
		UserID:       userID,
		Kind:         EntryKindReward,
		Amount:       amount,
		SubmissionID: &submissionID,
		CreatedAt:    now,
	}
}

func NewReferralBonusEntry(referrerID int64, amount decimal.Decimal, submissionID int64, now time.Time) Entry {
	return Entry{
		UserID:       referrerID,
		Kind:         EntryKindReferralBonus,
		Amount:       amount,
		SubmissionID: &submissionID,
		CreatedAt:    now,
	}
}

func NewWithdrawalEntry(userID int64, amount decimal.Decimal, withdrawalID int64, now time.Time) Entry {
	return Entry{
		UserID:       userID,
		Kind:         EntryKindWithdrawal,
		Amount:       amount.Neg(),
		WithdrawalID: &withdrawalID,
		CreatedAt:    now,
	}
}
