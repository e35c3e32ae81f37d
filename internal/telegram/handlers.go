package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/andymarkow/taskmart/internal/conversation"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
)

const (
	conversationTTL = 30 * time.Minute
	holdTimeLayout  = "2006-01-02 15:04 UTC"
)

const (
	textWelcome       = "Welcome to Crypto Earning Bot 💸"
	textSupportPrompt = "Send your message and it will be forwarded to admins."
	textSupportSent   = "✅ Message sent to admin."
	textNoTasks       = "❌ No tasks available currently."
	textNoHeldTasks   = "❌ No accounts/tasks currently."
	textSettings      = "⚙️ Settings:\n- Task hold/cooldown time\n- Notifications (coming soon)"
	textCancelled     = "Cancelled."
	textUnknown       = "Use /menu to open the main menu."
	textInternalError = "⚠️ Something went wrong, please try again later."
)

// commandArgs splits the message text and drops the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	return fields[1:]
}

func (h *Handler) handleStart(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	var referrer *int64

	if args := commandArgs(msg.Text); len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			referrer = &id
		}
	}

	if _, err := h.ledger.EnsureAccount(ctx, msg.From.ID, referrer); err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	h.send(ctx, msg.Chat.ID, textWelcome, mainMenu())
}

func (h *Handler) handleMenuCommand(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.send(ctx, update.Message.Chat.ID, textWelcome, mainMenu())
}

func (h *Handler) handleMenu(ctx context.Context, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	if _, err := h.sender.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		h.log.Warn("failed to answer callback query", slog.String("error", err.Error()))
	}

	if query.Message.Message == nil {
		return
	}

	chatID := query.Message.Message.Chat.ID
	userID := query.From.ID

	switch strings.TrimPrefix(query.Data, menuPrefix) {
	case actionSupport:
		h.startSupport(ctx, chatID, userID)
	case actionWallet:
		h.showWallet(ctx, chatID, userID)
	case actionAccounts:
		h.showHeldTasks(ctx, chatID, userID)
	case actionTasks:
		h.assignTask(ctx, chatID, userID)
	case actionSettings:
		h.send(ctx, chatID, textSettings, nil)
	case actionReferral:
		h.showReferral(ctx, chatID, userID)
	default:
		h.log.Debug("unknown menu action", slog.String("data", query.Data))
	}
}

func (h *Handler) startSupport(ctx context.Context, chatID, userID int64) {
	if err := h.conv.Set(ctx, userID, conversation.State{Kind: conversation.KindSupport}); err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	h.send(ctx, chatID, textSupportPrompt, nil)
}

func (h *Handler) showWallet(ctx context.Context, chatID, userID int64) {
	balance, err := h.ledger.GetBalance(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	h.send(ctx, chatID, fmt.Sprintf("💰 Your balance: $%s\nMinimum withdraw: $%s\nUse /withdraw <amount> to request a payout.",
		balance.String(), h.ledger.MinWithdraw().String()), nil)
}

func (h *Handler) showHeldTasks(ctx context.Context, chatID, userID int64) {
	held, err := h.ledger.ListHeldTasks(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	if len(held) == 0 {
		h.send(ctx, chatID, textNoHeldTasks, nil)

		return
	}

	var sb strings.Builder

	sb.WriteString("🗂 Your accounts / tasks:\n\n")

	for _, task := range held {
		fmt.Fprintf(&sb, "Task ID: %d | %s | Hold until: %s\n",
			task.ID(), task.Text(), task.HoldUntil().UTC().Format(holdTimeLayout))
	}

	h.send(ctx, chatID, sb.String(), nil)
}

func (h *Handler) assignTask(ctx context.Context, chatID, userID int64) {
	task, err := h.ledger.AssignTask(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	state := conversation.State{Kind: conversation.KindProof, TaskID: task.ID()}
	if err := h.conv.Set(ctx, userID, state); err != nil {
		h.log.Error("failed to save conversation state", slog.String("error", err.Error()))
	}

	h.send(ctx, chatID, fmt.Sprintf("📋 New Task:\n%s\nReward: $%s\nSubmit proof by replying to this message.",
		task.Text(), task.Reward().String()), nil)
}

func (h *Handler) showReferral(ctx context.Context, chatID, userID int64) {
	total, err := h.ledger.GetReferralBonusTotal(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	count, err := h.ledger.CountReferrals(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	h.send(ctx, chatID, fmt.Sprintf("👥 Your referral link:\n%s\nReferred users: %d\nTotal referral bonus earned: $%s",
		h.referralLink(userID), count, total.String()), nil)
}

func (h *Handler) referralLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", h.botUsername, userID)
}

func (h *Handler) handleWithdraw(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		h.send(ctx, msg.Chat.ID, "Usage: /withdraw <amount>", nil)

		return
	}

	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		h.send(ctx, msg.Chat.ID, "❌ Amount must be a number.", nil)

		return
	}

	withdrawal, err := h.ledger.RequestWithdrawal(ctx, msg.From.ID, amount)
	if err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	h.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Withdrawal #%d for $%s requested. An admin will review it.",
		withdrawal.ID(), withdrawal.Amount().String()), nil)

	h.notifyAdmins(ctx, fmt.Sprintf("💸 Withdrawal #%d from %d: $%s\n/wd_approve %d | /wd_reject %d",
		withdrawal.ID(), msg.From.ID, withdrawal.Amount().String(), withdrawal.ID(), withdrawal.ID()))
}

// handleProofCommand submits proof inline: /proof <task_id> <text>.
func (h *Handler) handleProofCommand(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	args := commandArgs(msg.Text)
	if len(args) < 2 {
		h.send(ctx, msg.Chat.ID, "Usage: /proof <task_id> <text>", nil)

		return
	}

	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.send(ctx, msg.Chat.ID, "❌ Task ID must be a number.", nil)

		return
	}

	h.submitProof(ctx, msg.Chat.ID, msg.From.ID, taskID, strings.Join(args[1:], " "))
}

func (h *Handler) handleCancel(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if err := h.conv.Clear(ctx, msg.From.ID); err != nil {
		h.replyError(ctx, msg.Chat.ID, err)

		return
	}

	h.send(ctx, msg.Chat.ID, textCancelled, mainMenu())
}

// handleText routes a plain message according to the pending conversation state.
func (h *Handler) handleText(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	// Unregistered commands must not consume pending state.
	if strings.HasPrefix(msg.Text, "/") {
		h.send(ctx, msg.Chat.ID, textUnknown, nil)

		return
	}

	state, err := h.conv.Take(ctx, msg.From.ID)
	if err != nil {
		if !errors.Is(err, conversation.ErrNoState) {
			h.log.Error("failed to load conversation state", slog.String("error", err.Error()))
		}

		h.send(ctx, msg.Chat.ID, textUnknown, nil)

		return
	}

	switch state.Kind {
	case conversation.KindSupport:
		h.notifyAdmins(ctx, fmt.Sprintf("📩 Support from %d:\n%s", msg.From.ID, msg.Text))
		h.send(ctx, msg.Chat.ID, textSupportSent, nil)
	case conversation.KindProof:
		h.submitProof(ctx, msg.Chat.ID, msg.From.ID, state.TaskID, msg.Text)
	default:
		h.send(ctx, msg.Chat.ID, textUnknown, nil)
	}
}

func (h *Handler) submitProof(ctx context.Context, chatID, userID, taskID int64, proof string) {
	sub, err := h.ledger.SubmitProof(ctx, userID, taskID, proof)
	if err != nil {
		h.replyError(ctx, chatID, err)

		return
	}

	h.send(ctx, chatID, fmt.Sprintf("✅ Proof for task %d received (submission #%d). Waiting for review.",
		taskID, sub.ID()), nil)

	h.notifyAdmins(ctx, fmt.Sprintf("🧾 Submission #%d from %d for task %d:\n%s\n/approve %d | /reject %d",
		sub.ID(), userID, taskID, proof, sub.ID(), sub.ID()))
}

// replyError tells the user what went wrong. Unclassified errors are logged
// and reported generically.
func (h *Handler) replyError(ctx context.Context, chatID int64, err error) {
	h.send(ctx, chatID, h.errorText(err), nil)
}

func (h *Handler) errorText(err error) string {
	switch {
	case errors.Is(err, storage.ErrNoTaskAvailable):
		return textNoTasks
	case errors.Is(err, withdrawals.ErrAmountBelowMinimum):
		return fmt.Sprintf("❌ Minimum withdraw: $%s", h.ledger.MinWithdraw().String())
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "❌ Insufficient balance."
	case errors.Is(err, storage.ErrNotAssigned):
		return "❌ This task is not assigned to you."
	case errors.Is(err, storage.ErrDuplicateSubmission):
		return "⏳ You already have a pending or approved submission for this task."
	case errs.IsClassified(err):
		return "❌ " + errs.Message(err) + "."
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))

		return textInternalError
	}
}
