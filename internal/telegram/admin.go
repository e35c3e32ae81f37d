package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
)

const addTaskUsage = "Usage: /addtask <reward> <visible_hours> <hold_days> <text>"

// handleAddTask publishes a task: /addtask <reward> <visible_hours> <hold_days> <text>.
func (h *Handler) handleAddTask(ctx context.Context, update *models.Update) {
	msg := update.Message

	args := commandArgs(msg.Text)
	if len(args) < 4 {
		h.send(ctx, msg.Chat.ID, addTaskUsage, nil)

		return
	}

	reward, err := decimal.NewFromString(args[0])
	if err != nil {
		h.send(ctx, msg.Chat.ID, addTaskUsage, nil)

		return
	}

	visibleHours, err := strconv.Atoi(args[1])
	if err != nil {
		h.send(ctx, msg.Chat.ID, addTaskUsage, nil)

		return
	}

	holdDays, err := strconv.Atoi(args[2])
	if err != nil {
		h.send(ctx, msg.Chat.ID, addTaskUsage, nil)

		return
	}

	task, err := h.ledger.CreateTask(ctx, strings.Join(args[3:], " "), reward, visibleHours, holdDays)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	h.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Task %d created. Reward: $%s, visible until %s.",
		task.ID(), task.Reward().String(), task.ExpiresAt().UTC().Format(holdTimeLayout)), nil)
}

func parseIDArg(text string) (int64, bool) {
	args := commandArgs(text)
	if len(args) != 1 {
		return 0, false
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

func (h *Handler) handleReviewSubmission(verdict submissions.Verdict) func(context.Context, *models.Update) {
	return func(ctx context.Context, update *models.Update) {
		msg := update.Message

		id, ok := parseIDArg(msg.Text)
		if !ok {
			h.send(ctx, msg.Chat.ID, "Usage: /approve <submission_id> or /reject <submission_id>", nil)

			return
		}

		review, err := h.ledger.ReviewSubmission(ctx, id, verdict)
		if err != nil {
			h.replyError(ctx, msg.Chat.ID, err)

			return
		}

		sub := review.Submission

		h.send(ctx, msg.Chat.ID, fmt.Sprintf("Submission #%d is %s.", sub.ID(), sub.Status()), nil)

		if sub.Status() == submissions.StatusRejected {
			h.send(ctx, sub.UserID(), fmt.Sprintf("❌ Your proof for task %d was rejected.", sub.TaskID()), nil)

			return
		}

		h.send(ctx, sub.UserID(), fmt.Sprintf("✅ Your proof for task %d was approved. +$%s\n💰 Balance: $%s",
			sub.TaskID(), review.Reward.String(), review.Balance.String()), nil)

		if review.ReferrerID != nil {
			h.send(ctx, *review.ReferrerID,
				fmt.Sprintf("👥 Referral bonus: +$%s", review.Bonus.String()), nil)
		}
	}
}

var withdrawalNotices = map[withdrawals.Status]string{
	withdrawals.StatusApproved: "✅ Your withdrawal #%d for $%s was approved.",
	withdrawals.StatusRejected: "❌ Your withdrawal #%d for $%s was rejected.",
	withdrawals.StatusPaid:     "💸 Your withdrawal #%d for $%s was paid.",
}

func (h *Handler) handleReviewWithdrawal(verdict withdrawals.Verdict) func(context.Context, *models.Update) {
	return func(ctx context.Context, update *models.Update) {
		msg := update.Message

		id, ok := parseIDArg(msg.Text)
		if !ok {
			h.send(ctx, msg.Chat.ID, "Usage: /wd_approve, /wd_reject or /wd_paid <withdrawal_id>", nil)

			return
		}

		withdrawal, err := h.ledger.ReviewWithdrawal(ctx, id, verdict)
		if err != nil {
			h.replyError(ctx, msg.Chat.ID, err)

			return
		}

		h.send(ctx, msg.Chat.ID, fmt.Sprintf("Withdrawal #%d is %s.", withdrawal.ID(), withdrawal.Status()), nil)

		if notice, ok := withdrawalNotices[withdrawal.Status()]; ok {
			h.send(ctx, withdrawal.UserID(), fmt.Sprintf(notice, withdrawal.ID(), withdrawal.Amount().String()), nil)
		}
	}
}

// handlePending lists the review queues.
func (h *Handler) handlePending(ctx context.Context, update *models.Update) {
	msg := update.Message

	subs, err := h.ledger.ListSubmissions(ctx, submissions.StatusPending)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	list, err := h.ledger.ListWithdrawalsByStatus(ctx, withdrawals.StatusPending, withdrawals.StatusApproved)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "🧾 Pending submissions: %d\n", len(subs))

	for _, sub := range subs {
		fmt.Fprintf(&sb, "#%d user %d task %d: %s\n", sub.ID(), sub.UserID(), sub.TaskID(), sub.Proof())
	}

	fmt.Fprintf(&sb, "\n💸 Open withdrawals: %d\n", len(list))

	for _, w := range list {
		fmt.Fprintf(&sb, "#%d user %d $%s %s\n", w.ID(), w.UserID(), w.Amount().String(), w.Status())
	}

	h.send(ctx, msg.Chat.ID, sb.String(), nil)
}
