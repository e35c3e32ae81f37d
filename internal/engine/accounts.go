package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/shopspring/decimal"
)

// EnsureAccount returns the account of userID, creating it with a zero
// balance on first contact. referrer is only honoured when the account is
// created and names another existing account.
func (e *Engine) EnsureAccount(ctx context.Context, userID int64, referrer *int64) (*accounts.Account, error) {
	if err := accounts.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("accounts.ValidateUserID: %w", err)
	}

	acct, created, err := e.store.GetOrCreateAccount(ctx, userID, referrer, e.now())
	if err != nil {
		return nil, fmt.Errorf("store.GetOrCreateAccount: %w", err)
	}

	if created {
		attrs := []any{slog.Int64("user_id", userID)}
		if ref, ok := acct.ReferredBy(); ok {
			attrs = append(attrs, slog.Int64("referred_by", ref))
		}

		e.log.Info("account created", attrs...)
	}

	return acct, nil
}

func (e *Engine) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	acct, err := e.EnsureAccount(ctx, userID, nil)
	if err != nil {
		return decimal.Zero, err
	}

	return acct.Balance(), nil
}

// GetAccount returns an existing account without creating one.
func (e *Engine) GetAccount(ctx context.Context, userID int64) (*accounts.Account, error) {
	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("store.GetAccount: %w", err)
	}

	return acct, nil
}
