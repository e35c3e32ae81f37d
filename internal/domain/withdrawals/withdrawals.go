//nolint:wrapcheck
package withdrawals

import (
	"fmt"
	"strings"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/shopspring/decimal"
)

var (
	ErrAmountNotPositive  = errs.New(errs.ErrInvalidInput, "withdrawal amount must be positive")
	ErrAmountBelowMinimum = errs.New(errs.ErrInvalidInput, "withdrawal amount below minimum")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

func (s Status) String() string {
	return string(s)
}

func ParseStatus(status string) (Status, error) {
	switch Status(strings.ToLower(status)) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusPaid:
		return StatusPaid, nil
	default:
		return "", errs.Invalidf("unknown withdrawal status: %s", status)
	}
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictPay     Verdict = "pay"
)

func ParseVerdict(verdict string) (Verdict, error) {
	switch Verdict(strings.ToLower(verdict)) {
	case VerdictApprove:
		return VerdictApprove, nil
	case VerdictReject:
		return VerdictReject, nil
	case VerdictPay:
		return VerdictPay, nil
	default:
		return "", errs.Invalidf("unknown withdrawal verdict: %s", verdict)
	}
}

// transitions lists the allowed moves of the withdrawal state machine.
// approved -> rejected is how a reviewer routes a withdrawal whose payout
// could not be debited.
var transitions = map[Status]map[Verdict]Status{
	StatusPending: {
		VerdictApprove: StatusApproved,
		VerdictReject:  StatusRejected,
	},
	StatusApproved: {
		VerdictPay:    StatusPaid,
		VerdictReject: StatusRejected,
	},
}

// Next returns the status reached by applying verdict to from.
func Next(from Status, verdict Verdict) (Status, error) {
	to, ok := transitions[from][verdict]
	if !ok {
		return "", errs.New(errs.ErrInvalidTransition,
			fmt.Sprintf("withdrawal cannot %s from status %s", verdict, from))
	}

	return to, nil
}

type Withdrawal struct {
	id        int64
	userID    int64
	amount    decimal.Decimal
	status    Status
	createdAt time.Time
	updatedAt time.Time
}

// NewWithdrawal creates a pending withdrawal request of at least minimum.
func NewWithdrawal(userID int64, amount, minimum decimal.Decimal, now time.Time) (*Withdrawal, error) {
	if err := accounts.ValidateUserID(userID); err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	if err := accounts.ValidateScale(amount); err != nil {
		return nil, err
	}

	if amount.LessThan(minimum) {
		return nil, ErrAmountBelowMinimum
	}

	return &Withdrawal{
		userID:    userID,
		amount:    amount,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// RestoreWithdrawal rebuilds a withdrawal from stored fields.
func RestoreWithdrawal(
	id, userID int64, amount decimal.Decimal, status Status, createdAt, updatedAt time.Time,
) *Withdrawal {
	return &Withdrawal{
		id:        id,
		userID:    userID,
		amount:    amount,
		status:    status,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (w *Withdrawal) ID() int64 {
	return w.id
}

func (w *Withdrawal) SetID(id int64) {
	w.id = id
}

func (w *Withdrawal) UserID() int64 {
	return w.userID
}

func (w *Withdrawal) Amount() decimal.Decimal {
	return w.amount
}

func (w *Withdrawal) Status() Status {
	return w.status
}

func (w *Withdrawal) CreatedAt() time.Time {
	return w.createdAt
}

func (w *Withdrawal) UpdatedAt() time.Time {
	return w.updatedAt
}

// Apply moves the withdrawal along the state machine.
func (w *Withdrawal) Apply(verdict Verdict, now time.Time) error {
	to, err := Next(w.status, verdict)
	if err != nil {
		return err
	}

	w.status = to
	w.updatedAt = now

	return nil
}

// Clone returns an independent copy of the withdrawal.
func (w *Withdrawal) Clone() *Withdrawal {
	return RestoreWithdrawal(w.id, w.userID, w.amount, w.status, w.createdAt, w.updatedAt)
}
