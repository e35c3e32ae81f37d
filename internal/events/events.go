// Package events publishes notifications about committed ledger changes to
// external consumers such as the payout process.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeTaskCreated         Type = "task.created"
	TypeTaskAssigned        Type = "task.assigned"
	TypeSubmissionCreated   Type = "submission.created"
	TypeSubmissionApproved  Type = "submission.approved"
	TypeSubmissionRejected  Type = "submission.rejected"
	TypeWithdrawalRequested Type = "withdrawal.requested"
	TypeWithdrawalApproved  Type = "withdrawal.approved"
	TypeWithdrawalRejected  Type = "withdrawal.rejected"
	TypeWithdrawalPaid      Type = "withdrawal.paid"
)

func (t Type) String() string {
	return string(t)
}

// Event is the envelope sent to every publisher.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       Type           `json:"type"`
	UserID     int64          `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType Type, userID int64, data map[string]any, now time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: now.UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// Multi fans an event out to several publishers. Every publisher is tried
// even when an earlier one fails.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error

	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error

	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
