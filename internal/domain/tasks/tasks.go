//nolint:wrapcheck
package tasks

import (
	"strings"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/shopspring/decimal"
)

var (
	ErrTaskTextEmpty           = errs.New(errs.ErrInvalidInput, "task text is empty")
	ErrTaskRewardNotPositive   = errs.New(errs.ErrInvalidInput, "task reward must be positive")
	ErrTaskVisibleHoursInvalid = errs.New(errs.ErrInvalidInput, "task visible hours must be positive")
	ErrTaskHoldDaysInvalid     = errs.New(errs.ErrInvalidInput, "task hold days must not be negative")
	ErrTaskAlreadyAssigned     = errs.New(errs.ErrConflict, "task already assigned")
	ErrTaskExpired             = errs.New(errs.ErrConflict, "task expired")
)

type Task struct {
	id           int64
	text         string
	reward       decimal.Decimal
	assignedUser *int64
	assignedAt   *time.Time
	createdAt    time.Time
	expiresAt    time.Time
	holdUntil    time.Time
}

// NewTask creates an unassigned task visible for visibleHours and held for
// holdDays, both counted from now.
func NewTask(text string, reward decimal.Decimal, visibleHours, holdDays int, now time.Time) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrTaskTextEmpty
	}

	if !reward.IsPositive() {
		return nil, ErrTaskRewardNotPositive
	}

	if err := accounts.ValidateScale(reward); err != nil {
		return nil, err
	}

	if visibleHours <= 0 {
		return nil, ErrTaskVisibleHoursInvalid
	}

	if holdDays < 0 {
		return nil, ErrTaskHoldDaysInvalid
	}

	return &Task{
		text:      text,
		reward:    reward,
		createdAt: now,
		expiresAt: now.Add(time.Duration(visibleHours) * time.Hour),
		holdUntil: now.AddDate(0, 0, holdDays),
	}, nil
}

// RestoreTask rebuilds a task from stored fields.
func RestoreTask(
	id int64, text string, reward decimal.Decimal, assignedUser *int64, assignedAt *time.Time,
	createdAt, expiresAt, holdUntil time.Time,
) *Task {
	t := &Task{
		id:        id,
		text:      text,
		reward:    reward,
		createdAt: createdAt,
		expiresAt: expiresAt,
		holdUntil: holdUntil,
	}

	if assignedUser != nil {
		user := *assignedUser
		t.assignedUser = &user
	}

	if assignedAt != nil {
		at := *assignedAt
		t.assignedAt = &at
	}

	return t
}

func (t *Task) ID() int64 {
	return t.id
}

func (t *Task) SetID(id int64) {
	t.id = id
}

func (t *Task) Text() string {
	return t.text
}

func (t *Task) Reward() decimal.Decimal {
	return t.reward
}

func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Task) ExpiresAt() time.Time {
	return t.expiresAt
}

func (t *Task) HoldUntil() time.Time {
	return t.holdUntil
}

// AssignedUser returns the assignee if the task has been claimed.
func (t *Task) AssignedUser() (int64, bool) {
	if t.assignedUser == nil {
		return 0, false
	}

	return *t.assignedUser, true
}

func (t *Task) AssignedAt() (time.Time, bool) {
	if t.assignedAt == nil {
		return time.Time{}, false
	}

	return *t.assignedAt, true
}

func (t *Task) IsAssignedTo(userID int64) bool {
	return t.assignedUser != nil && *t.assignedUser == userID
}

// Claimable reports whether assign may hand out the task at now.
func (t *Task) Claimable(now time.Time) bool {
	return t.assignedUser == nil && t.expiresAt.After(now)
}

// HeldAt reports whether the task is assigned and still inside its hold period.
func (t *Task) HeldAt(now time.Time) bool {
	return t.assignedUser != nil && t.holdUntil.After(now)
}

// Assign claims the task for userID. A task is assigned at most once.
func (t *Task) Assign(userID int64, now time.Time) error {
	if t.assignedUser != nil {
		return ErrTaskAlreadyAssigned
	}

	if !t.expiresAt.After(now) {
		return ErrTaskExpired
	}

	user := userID
	at := now

	t.assignedUser = &user
	t.assignedAt = &at

	return nil
}

// Clone returns an independent copy of the task.
func (t *Task) Clone() *Task {
	return RestoreTask(t.id, t.text, t.reward, t.assignedUser, t.assignedAt, t.createdAt, t.expiresAt, t.holdUntil)
}

// Stats summarizes the pool at a point in time.
type Stats struct {
	Open             int64
	ExpiredUnclaimed int64
	Held             int64
	HoldElapsed      int64
}
