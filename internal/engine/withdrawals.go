package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/events"
	"github.com/shopspring/decimal"
)

var withdrawalEvents = map[withdrawals.Status]events.Type{
	withdrawals.StatusApproved: events.TypeWithdrawalApproved,
	withdrawals.StatusRejected: events.TypeWithdrawalRejected,
	withdrawals.StatusPaid:     events.TypeWithdrawalPaid,
}

// RequestWithdrawal creates a pending withdrawal. Nothing is debited until
// the withdrawal is paid.
func (e *Engine) RequestWithdrawal(
	ctx context.Context, userID int64, amount decimal.Decimal,
) (*withdrawals.Withdrawal, error) {
	withdrawal, err := withdrawals.NewWithdrawal(userID, amount, e.minWithdraw, e.now())
	if err != nil {
		return nil, fmt.Errorf("withdrawals.NewWithdrawal: %w", err)
	}

	if _, err := e.EnsureAccount(ctx, userID, nil); err != nil {
		return nil, err
	}

	if err := e.store.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("store.CreateWithdrawal: %w", err)
	}

	e.metrics.WithdrawalTransition(withdrawal.Status().String())
	e.log.Info("withdrawal requested",
		slog.Int64("withdrawal_id", withdrawal.ID()),
		slog.Int64("user_id", userID),
		slog.String("amount", amount.String()))

	e.publish(ctx, events.New(events.TypeWithdrawalRequested, userID, map[string]any{
		"withdrawal_id": withdrawal.ID(),
		"amount":        amount.String(),
	}, withdrawal.CreatedAt()))

	return withdrawal, nil
}

// ReviewWithdrawal moves a withdrawal along its state machine. Paying debits
// the balance in the same transaction and leaves the withdrawal approved
// when the balance no longer covers it.
func (e *Engine) ReviewWithdrawal(
	ctx context.Context, withdrawalID int64, verdict withdrawals.Verdict,
) (*withdrawals.Withdrawal, error) {
	withdrawal, err := e.store.ReviewWithdrawal(ctx, withdrawalID, verdict, e.now())
	if err != nil {
		return nil, fmt.Errorf("store.ReviewWithdrawal: %w", err)
	}

	e.metrics.WithdrawalTransition(withdrawal.Status().String())
	e.log.Info("withdrawal reviewed",
		slog.Int64("withdrawal_id", withdrawal.ID()),
		slog.Int64("user_id", withdrawal.UserID()),
		slog.String("status", withdrawal.Status().String()))

	if eventType, ok := withdrawalEvents[withdrawal.Status()]; ok {
		e.publish(ctx, events.New(eventType, withdrawal.UserID(), map[string]any{
			"withdrawal_id": withdrawal.ID(),
			"amount":        withdrawal.Amount().String(),
		}, withdrawal.UpdatedAt()))
	}

	return withdrawal, nil
}

func (e *Engine) ListWithdrawals(ctx context.Context, userID int64) ([]*withdrawals.Withdrawal, error) {
	if err := accounts.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("accounts.ValidateUserID: %w", err)
	}

	list, err := e.store.GetWithdrawalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("store.GetWithdrawalsByUser: %w", err)
	}

	return list, nil
}

// ListWithdrawalsByStatus returns withdrawals in any of statuses, all of them
// when none is given. The payout process reads approved ones from here.
func (e *Engine) ListWithdrawalsByStatus(
	ctx context.Context, statuses ...withdrawals.Status,
) ([]*withdrawals.Withdrawal, error) {
	list, err := e.store.GetWithdrawalsByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("store.GetWithdrawalsByStatus: %w", err)
	}

	return list, nil
}

func (e *Engine) MinWithdraw() decimal.Decimal {
	return e.minWithdraw
}

func (e *Engine) GetWithdrawal(ctx context.Context, withdrawalID int64) (*withdrawals.Withdrawal, error) {
	withdrawal, err := e.store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("store.GetWithdrawal: %w", err)
	}

	return withdrawal, nil
}
