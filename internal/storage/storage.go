package storage

import (
	"context"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound     = errs.New(errs.ErrNotFound, "account not found")
	ErrTaskNotFound        = errs.New(errs.ErrNotFound, "task not found")
	ErrSubmissionNotFound  = errs.New(errs.ErrNotFound, "submission not found")
	ErrWithdrawalNotFound  = errs.New(errs.ErrNotFound, "withdrawal not found")
	ErrNoTaskAvailable     = errs.New(errs.ErrNoTaskAvailable, "no task available")
	ErrNotAssigned         = errs.New(errs.ErrConflict, "task not assigned to user")
	ErrDuplicateSubmission = errs.New(errs.ErrConflict, "submission already pending or approved")
	ErrEntryAlreadyApplied = errs.New(errs.ErrConflict, "ledger entry already applied")
)

// BonusFunc returns the referral bonus owed on a reward.
type BonusFunc func(reward decimal.Decimal) decimal.Decimal

// SubmissionReview is the outcome of a committed submission review.
type SubmissionReview struct {
	Submission *submissions.Submission
	Reward     decimal.Decimal
	Balance    decimal.Decimal
	ReferrerID *int64
	Bonus      decimal.Decimal
}

type AccountStorage interface {
	// GetOrCreateAccount returns the account, creating it on first contact.
	// referredBy is recorded only at creation and only if it names an existing account.
	GetOrCreateAccount(ctx context.Context, userID int64, referredBy *int64, now time.Time) (*accounts.Account, bool, error)
	GetAccount(ctx context.Context, userID int64) (*accounts.Account, error)
	SumEntries(ctx context.Context, userID int64, kind accounts.EntryKind) (decimal.Decimal, error)
	CountReferrals(ctx context.Context, userID int64) (int64, error)
}

type TaskStorage interface {
	CreateTask(ctx context.Context, task *tasks.Task) error
	GetTask(ctx context.Context, id int64) (*tasks.Task, error)
	// AssignTask claims the oldest claimable task for userID in one atomic step.
	AssignTask(ctx context.Context, userID int64, now time.Time) (*tasks.Task, error)
	GetTasksHeldBy(ctx context.Context, userID int64, now time.Time) ([]*tasks.Task, error)
	GetTaskStats(ctx context.Context, now time.Time) (tasks.Stats, error)
}

type SubmissionStorage interface {
	CreateSubmission(ctx context.Context, sub *submissions.Submission) error
	GetSubmission(ctx context.Context, id int64) (*submissions.Submission, error)
	GetSubmissionsByStatus(ctx context.Context, statuses ...submissions.Status) ([]*submissions.Submission, error)
	// ReviewSubmission flips the status and, on approval, credits the reward
	// and the referral bonus in the same transaction.
	ReviewSubmission(
		ctx context.Context, id int64, verdict submissions.Verdict, bonus BonusFunc, now time.Time,
	) (*SubmissionReview, error)
}

type WithdrawalStorage interface {
	// CreateWithdrawal stores a pending withdrawal if the balance covers it.
	CreateWithdrawal(ctx context.Context, withdrawal *withdrawals.Withdrawal) error
	GetWithdrawal(ctx context.Context, id int64) (*withdrawals.Withdrawal, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]*withdrawals.Withdrawal, error)
	GetWithdrawalsByStatus(ctx context.Context, statuses ...withdrawals.Status) ([]*withdrawals.Withdrawal, error)
	// ReviewWithdrawal applies verdict; paying debits the balance in the same transaction.
	ReviewWithdrawal(
		ctx context.Context, id int64, verdict withdrawals.Verdict, now time.Time,
	) (*withdrawals.Withdrawal, error)
}

type Storage interface {
	AccountStorage
	TaskStorage
	SubmissionStorage
	WithdrawalStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
