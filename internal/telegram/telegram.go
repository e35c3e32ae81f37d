// Package telegram is the chat front end of the marketplace. It translates
// bot updates into ledger operations and renders their results.
package telegram

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/andymarkow/taskmart/internal/conversation"
	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
)

// Sender is the part of the Bot API the handlers call. *bot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Ledger is the set of engine operations exposed through the bot.
type Ledger interface {
	EnsureAccount(ctx context.Context, userID int64, referrer *int64) (*accounts.Account, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	CreateTask(ctx context.Context, text string, reward decimal.Decimal, visibleHours, holdDays int) (*tasks.Task, error)
	AssignTask(ctx context.Context, userID int64) (*tasks.Task, error)
	ListHeldTasks(ctx context.Context, userID int64) ([]*tasks.Task, error)
	SubmitProof(ctx context.Context, userID, taskID int64, proof string) (*submissions.Submission, error)
	ReviewSubmission(
		ctx context.Context, submissionID int64, verdict submissions.Verdict,
	) (*storage.SubmissionReview, error)
	ListSubmissions(ctx context.Context, statuses ...submissions.Status) ([]*submissions.Submission, error)
	GetReferralBonusTotal(ctx context.Context, userID int64) (decimal.Decimal, error)
	CountReferrals(ctx context.Context, userID int64) (int64, error)
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (*withdrawals.Withdrawal, error)
	ReviewWithdrawal(
		ctx context.Context, withdrawalID int64, verdict withdrawals.Verdict,
	) (*withdrawals.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, statuses ...withdrawals.Status) ([]*withdrawals.Withdrawal, error)
	MinWithdraw() decimal.Decimal
}

type Handler struct {
	log         *slog.Logger
	sender      Sender
	ledger      Ledger
	conv        conversation.Store
	metrics     *metrics.Collector
	admins      map[int64]struct{}
	botUsername string
}

type Option func(h *Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.log = logger
	}
}

func WithConversationStore(store conversation.Store) Option {
	return func(h *Handler) {
		h.conv = store
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(h *Handler) {
		h.metrics = collector
	}
}

func WithAdmins(ids ...int64) Option {
	return func(h *Handler) {
		for _, id := range ids {
			h.admins[id] = struct{}{}
		}
	}
}

// WithBotUsername sets the username used in referral links.
func WithBotUsername(username string) Option {
	return func(h *Handler) {
		h.botUsername = username
	}
}

func New(sender Sender, ledger Ledger, opts ...Option) *Handler {
	h := &Handler{
		log:    slog.Default(),
		sender: sender,
		ledger: ledger,
		admins: make(map[int64]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.conv == nil {
		h.conv = conversation.NewMemoryStore(conversationTTL)
	}

	if h.metrics == nil {
		h.metrics = metrics.NewCollector()
	}

	h.log = h.log.With(slog.String("module", "telegram"))

	return h
}

// Register attaches every command, callback and text handler to b.
func (h *Handler) Register(b *bot.Bot) {
	commands := map[string]func(ctx context.Context, update *models.Update){
		"/start":      h.handleStart,
		"/menu":       h.handleMenuCommand,
		"/withdraw":   h.handleWithdraw,
		"/proof":      h.handleProofCommand,
		"/cancel":     h.handleCancel,
		"/addtask":    h.admin(h.handleAddTask),
		"/approve":    h.admin(h.handleReviewSubmission(submissions.VerdictApprove)),
		"/reject":     h.admin(h.handleReviewSubmission(submissions.VerdictReject)),
		"/wd_approve": h.admin(h.handleReviewWithdrawal(withdrawals.VerdictApprove)),
		"/wd_reject":  h.admin(h.handleReviewWithdrawal(withdrawals.VerdictReject)),
		"/wd_paid":    h.admin(h.handleReviewWithdrawal(withdrawals.VerdictPay)),
		"/pending":    h.admin(h.handlePending),
	}

	for command, fn := range commands {
		b.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypePrefix, adapt(fn))
	}

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, menuPrefix, bot.MatchTypePrefix, adapt(h.handleMenu))
}

// HandleText is the default handler for messages no command matched.
func (h *Handler) HandleText(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h.handleText(ctx, update)
}

func adapt(fn func(ctx context.Context, update *models.Update)) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		fn(ctx, update)
	}
}

func (h *Handler) isAdmin(userID int64) bool {
	_, ok := h.admins[userID]

	return ok
}

// admin restricts fn to configured admins and ignores everyone else.
func (h *Handler) admin(fn func(ctx context.Context, update *models.Update)) func(context.Context, *models.Update) {
	return func(ctx context.Context, update *models.Update) {
		if update.Message == nil || update.Message.From == nil || !h.isAdmin(update.Message.From.ID) {
			return
		}

		fn(ctx, update)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}

	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := h.sender.SendMessage(ctx, params); err != nil {
		h.log.Error("failed to send message", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (h *Handler) notifyAdmins(ctx context.Context, text string) {
	for id := range h.admins {
		h.send(ctx, id, text, nil)
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
