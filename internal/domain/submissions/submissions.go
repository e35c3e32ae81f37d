//nolint:wrapcheck
package submissions

import (
	"fmt"
	"strings"
	"time"

	"github.com/andymarkow/taskmart/internal/errs"
)

var (
	ErrProofEmpty      = errs.New(errs.ErrInvalidInput, "submission proof is empty")
	ErrAlreadyReviewed = errs.New(errs.ErrConflict, "submission already reviewed")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
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
	default:
		return "", errs.Invalidf("unknown submission status: %s", status)
	}
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

func ParseVerdict(verdict string) (Verdict, error) {
	switch Verdict(strings.ToLower(verdict)) {
	case VerdictApprove:
		return VerdictApprove, nil
	case VerdictReject:
		return VerdictReject, nil
	default:
		return "", errs.Invalidf("unknown submission verdict: %s", verdict)
	}
}

type Submission struct {
	id         int64
	userID     int64
	taskID     int64
	proof      string
	status     Status
	createdAt  time.Time
	reviewedAt *time.Time
}

func NewSubmission(userID, taskID int64, proof string, now time.Time) (*Submission, error) {
	if strings.TrimSpace(proof) == "" {
		return nil, ErrProofEmpty
	}

	return &Submission{
		userID:    userID,
		taskID:    taskID,
		proof:     proof,
		status:    StatusPending,
		createdAt: now,
	}, nil
}

// RestoreSubmission rebuilds a submission from stored fields.
func RestoreSubmission(
	id, userID, taskID int64, proof string, status Status, createdAt time.Time, reviewedAt *time.Time,
) *Submission {
	s := &Submission{
		id:        id,
		userID:    userID,
		taskID:    taskID,
		proof:     proof,
		status:    status,
		createdAt: createdAt,
	}

	if reviewedAt != nil {
		at := *reviewedAt
		s.reviewedAt = &at
	}

	return s
}

func (s *Submission) ID() int64 {
	return s.id
}

func (s *Submission) SetID(id int64) {
	s.id = id
}

func (s *Submission) UserID() int64 {
	return s.userID
}

func (s *Submission) TaskID() int64 {
	return s.taskID
}

func (s *Submission) Proof() string {
	return s.proof
}

func (s *Submission) Status() Status {
	return s.status
}

func (s *Submission) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Submission) ReviewedAt() (time.Time, bool) {
	if s.reviewedAt == nil {
		return time.Time{}, false
	}

	return *s.reviewedAt, true
}

// BlocksResubmission reports whether the submission prevents another one
// for the same user and task.
func (s *Submission) BlocksResubmission() bool {
	return s.status == StatusPending || s.status == StatusApproved
}

// Review moves a pending submission to its terminal status.
func (s *Submission) Review(verdict Verdict, now time.Time) error {
	if s.status != StatusPending {
		return ErrAlreadyReviewed
	}

	switch verdict {
	case VerdictApprove:
		s.status = StatusApproved
	case VerdictReject:
		s.status = StatusRejected
	default:
		return fmt.Errorf("%w: %s", errs.ErrInvalidInput, verdict)
	}

	at := now
	s.reviewedAt = &at

	return nil
}

// Clone returns an independent copy of the submission.
func (s *Submission) Clone() *Submission {
	return RestoreSubmission(s.id, s.userID, s.taskID, s.proof, s.status, s.createdAt, s.reviewedAt)
}
