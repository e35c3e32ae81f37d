//nolint:wrapcheck
package accounts

import (
	"time"

	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/shopspring/decimal"
)

// AmountPlaces is the scale of every stored amount, matching the ledger's
// NUMERIC(20, 8) columns.
const AmountPlaces = 8

var (
	ErrUserIDInvalid     = errs.New(errs.ErrInvalidInput, "user id must be positive")
	ErrAmountNotPositive = errs.New(errs.ErrInvalidInput, "amount must be positive")
	ErrAmountScale       = errs.New(errs.ErrInvalidInput, "amount must have at most 8 decimal places")
	ErrAmountTooLarge    = errs.New(errs.ErrInvalidInput, "amount is too large")
	ErrBalanceNotEnough  = errs.New(errs.ErrInsufficientFunds, "account balance not enough")
)

// amountLimit is the first value a NUMERIC(20, 8) column cannot hold.
var amountLimit = decimal.New(1, 20-AmountPlaces)

// ValidateScale rejects amounts that the ledger could not store exactly.
func ValidateScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(AmountPlaces)) {
		return ErrAmountScale
	}

	if amount.Abs().GreaterThanOrEqual(amountLimit) {
		return ErrAmountTooLarge
	}

	return nil
}

type Account struct {
	userID     int64
	balance    decimal.Decimal
	referredBy *int64
	createdAt  time.Time
}

// NewAccount creates an account with zero balance on first contact.
// A non-positive or self-referencing referrer is dropped.
func NewAccount(userID int64, referredBy *int64, now time.Time) (*Account, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	if referredBy != nil && (*referredBy <= 0 || *referredBy == userID) {
		referredBy = nil
	}

	return &Account{
		userID:     userID,
		balance:    decimal.Zero,
		referredBy: copyID(referredBy),
		createdAt:  now,
	}, nil
}

// RestoreAccount rebuilds an account from stored fields.
func RestoreAccount(userID int64, balance decimal.Decimal, referredBy *int64, createdAt time.Time) *Account {
	return &Account{
		userID:     userID,
		balance:    balance,
		referredBy: copyID(referredBy),
		createdAt:  createdAt,
	}
}

func (a *Account) UserID() int64 {
	return a.userID
}

func (a *Account) Balance() decimal.Decimal {
	return a.balance
}

func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

// ReferredBy returns the referrer identity if the account has one.
func (a *Account) ReferredBy() (int64, bool) {
	if a.referredBy == nil {
		return 0, false
	}

	return *a.referredBy, true
}

// Credit increases the balance by a positive amount.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	a.balance = a.balance.Add(amount)

	return nil
}

// Debit decreases the balance. The balance is left untouched on failure.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	if a.balance.LessThan(amount) {
		return ErrBalanceNotEnough
	}

	a.balance = a.balance.Sub(amount)

	return nil
}

// Clone returns an independent copy of the account.
func (a *Account) Clone() *Account {
	return RestoreAccount(a.userID, a.balance, a.referredBy, a.createdAt)
}

func ValidateUserID(userID int64) error {
	if userID <= 0 {
		return ErrUserIDInvalid
	}

	return nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}

	v := *id

	return &v
}
