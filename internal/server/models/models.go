package models

import (
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/shopspring/decimal"
)

type TokenRequest struct {
	Client string `json:"client"`
	Secret string `json:"secret"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type AccountRequest struct {
	ReferrerID *int64 `json:"referrer_id,omitempty"`
}

type AccountResponse struct {
	UserID     int64           `json:"user_id"`
	Balance    decimal.Decimal `json:"balance"`
	ReferredBy *int64          `json:"referred_by,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

type BalanceResponse struct {
	UserID      int64           `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	MinWithdraw decimal.Decimal `json:"min_withdraw"`
}

type ReferralResponse struct {
	UserID     int64           `json:"user_id"`
	Referrals  int64           `json:"referrals"`
	BonusTotal decimal.Decimal `json:"bonus_total"`
	BonusRate  decimal.Decimal `json:"bonus_rate"`
}

type TaskRequest struct {
	Text         string          `json:"text"`
	Reward       decimal.Decimal `json:"reward"`
	VisibleHours int             `json:"visible_hours"`
	HoldDays     int             `json:"hold_days"`
}

type TaskResponse struct {
	ID           int64           `json:"id"`
	Text         string          `json:"text"`
	Reward       decimal.Decimal `json:"reward"`
	CreatedAt    string          `json:"created_at"`
	ExpiresAt    string          `json:"expires_at"`
	HoldUntil    string          `json:"hold_until"`
	AssignedUser *int64          `json:"assigned_user,omitempty"`
	AssignedAt   string          `json:"assigned_at,omitempty"`
}

type TaskStatsResponse struct {
	Open             int64 `json:"open"`
	ExpiredUnclaimed int64 `json:"expired_unclaimed"`
	Held             int64 `json:"held"`
	HoldElapsed      int64 `json:"hold_elapsed"`
}

type SubmissionRequest struct {
	TaskID int64  `json:"task_id"`
	Proof  string `json:"proof"`
}

type SubmissionResponse struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	TaskID     int64              `json:"task_id"`
	Proof      string             `json:"proof"`
	Status     submissions.Status `json:"status"`
	CreatedAt  string             `json:"created_at"`
	ReviewedAt string             `json:"reviewed_at,omitempty"`
}

type ReviewRequest struct {
	Verdict string `json:"verdict"`
}

type SubmissionReviewResponse struct {
	Submission    SubmissionResponse `json:"submission"`
	Reward        decimal.Decimal    `json:"reward"`
	Balance       decimal.Decimal    `json:"balance"`
	ReferrerID    *int64             `json:"referrer_id,omitempty"`
	ReferralBonus decimal.Decimal    `json:"referral_bonus"`
}

type WithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawalResponse struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Amount    decimal.Decimal    `json:"amount"`
	Status    withdrawals.Status `json:"status"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

func NewAccountResponse(account *accounts.Account) AccountResponse {
	resp := AccountResponse{
		UserID:    account.UserID(),
		Balance:   account.Balance(),
		CreatedAt: account.CreatedAt().Format(time.RFC3339),
	}

	if referrer, ok := account.ReferredBy(); ok {
		resp.ReferredBy = &referrer
	}

	return resp
}

func NewTaskResponse(task *tasks.Task) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID(),
		Text:      task.Text(),
		Reward:    task.Reward(),
		CreatedAt: task.CreatedAt().Format(time.RFC3339),
		ExpiresAt: task.ExpiresAt().Format(time.RFC3339),
		HoldUntil: task.HoldUntil().Format(time.RFC3339),
	}

	if userID, ok := task.AssignedUser(); ok {
		resp.AssignedUser = &userID
	}

	if at, ok := task.AssignedAt(); ok {
		resp.AssignedAt = at.Format(time.RFC3339)
	}

	return resp
}

func NewSubmissionResponse(sub *submissions.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:        sub.ID(),
		UserID:    sub.UserID(),
		TaskID:    sub.TaskID(),
		Proof:     sub.Proof(),
		Status:    sub.Status(),
		CreatedAt: sub.CreatedAt().Format(time.RFC3339),
	}

	if at, ok := sub.ReviewedAt(); ok {
		resp.ReviewedAt = at.Format(time.RFC3339)
	}

	return resp
}

func NewWithdrawalResponse(w *withdrawals.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:        w.ID(),
		UserID:    w.UserID(),
		Amount:    w.Amount(),
		Status:    w.Status(),
		CreatedAt: w.CreatedAt().Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt().Format(time.RFC3339),
	}
}
