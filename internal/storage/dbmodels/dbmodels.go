package dbmodels

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	UserID     int64
	Balance    decimal.Decimal
	ReferredBy sql.NullInt64
	CreatedAt  time.Time
}

type Task struct {
	ID           int64
	Text         string
	Reward       decimal.Decimal
	AssignedUser sql.NullInt64
	AssignedAt   sql.NullTime
	CreatedAt    time.Time
	ExpiresAt    time.Time
	HoldUntil    time.Time
}

type Submission struct {
	ID         int64
	UserID     int64
	TaskID     int64
	Proof      string
	Status     string
	CreatedAt  time.Time
	ReviewedAt sql.NullTime
}

type Withdrawal struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
