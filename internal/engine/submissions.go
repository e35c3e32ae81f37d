package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/events"
	"github.com/andymarkow/taskmart/internal/storage"
)

func (e *Engine) SubmitProof(ctx context.Context, userID, taskID int64, proof string) (*submissions.Submission, error) {
	if err := accounts.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("accounts.ValidateUserID: %w", err)
	}

	sub, err := submissions.NewSubmission(userID, taskID, proof, e.now())
	if err != nil {
		return nil, fmt.Errorf("submissions.NewSubmission: %w", err)
	}

	if err := e.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("store.CreateSubmission: %w", err)
	}

	e.metrics.SubmissionCreated()
	e.log.Info("proof submitted",
		slog.Int64("submission_id", sub.ID()), slog.Int64("task_id", taskID), slog.Int64("user_id", userID))

	e.publish(ctx, events.New(events.TypeSubmissionCreated, userID, map[string]any{
		"submission_id": sub.ID(),
		"task_id":       taskID,
	}, sub.CreatedAt()))

	return sub, nil
}

// ReviewSubmission records the verdict on a pending submission. Approval
// credits the task reward and the referral bonus in the same transaction as
// the status change; a second review fails with submissions.ErrAlreadyReviewed.
func (e *Engine) ReviewSubmission(
	ctx context.Context, submissionID int64, verdict submissions.Verdict,
) (*storage.SubmissionReview, error) {
	now := e.now()

	review, err := e.store.ReviewSubmission(ctx, submissionID, verdict, e.referralBonus, now)
	if err != nil {
		return nil, fmt.Errorf("store.ReviewSubmission: %w", err)
	}

	sub := review.Submission

	e.metrics.SubmissionReviewed(sub.Status().String())

	log := e.log.With(slog.Int64("submission_id", sub.ID()), slog.Int64("user_id", sub.UserID()))

	if sub.Status() == submissions.StatusRejected {
		log.Info("submission rejected")

		e.publish(ctx, events.New(events.TypeSubmissionRejected, sub.UserID(), map[string]any{
			"submission_id": sub.ID(),
			"task_id":       sub.TaskID(),
		}, now))

		return review, nil
	}

	e.metrics.Credited(accounts.EntryKindReward.String(), review.Reward)

	data := map[string]any{
		"submission_id": sub.ID(),
		"task_id":       sub.TaskID(),
		"reward":        review.Reward.String(),
		"balance":       review.Balance.String(),
	}

	if review.ReferrerID != nil {
		e.metrics.Credited(accounts.EntryKindReferralBonus.String(), review.Bonus)

		data["referrer_id"] = *review.ReferrerID
		data["referral_bonus"] = review.Bonus.String()

		log.Info("referral bonus credited",
			slog.Int64("referrer_id", *review.ReferrerID), slog.String("bonus", review.Bonus.String()))
	}

	log.Info("submission approved", slog.String("reward", review.Reward.String()))

	e.publish(ctx, events.New(events.TypeSubmissionApproved, sub.UserID(), data, now))

	return review, nil
}

// ListSubmissions returns submissions in any of statuses, all of them when
// none is given, oldest first.
func (e *Engine) ListSubmissions(ctx context.Context, statuses ...submissions.Status) ([]*submissions.Submission, error) {
	subs, err := e.store.GetSubmissionsByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("store.GetSubmissionsByStatus: %w", err)
	}

	return subs, nil
}

func (e *Engine) GetSubmission(ctx context.Context, submissionID int64) (*submissions.Submission, error) {
	sub, err := e.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("store.GetSubmission: %w", err)
	}

	return sub, nil
}
