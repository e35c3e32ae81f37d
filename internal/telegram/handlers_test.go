package telegram

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/andymarkow/taskmart/internal/conversation"
	"github.com/andymarkow/taskmart/internal/engine"
	"github.com/andymarkow/taskmart/internal/storage/inmemory"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = 1000

type sentMessage struct {
	chatID int64
	text   string
	markup models.ReplyMarkup
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	answered []string
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chatID, _ := params.ChatID.(int64)
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: params.Text, markup: params.ReplyMarkup})

	return &models.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.answered = append(f.answered, params.CallbackQueryID)

	return true, nil
}

// to returns the texts sent to chatID and forgets all recorded messages.
func (f *fakeSender) to(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string

	for _, m := range f.messages {
		if m.chatID == chatID {
			texts = append(texts, m.text)
		}
	}

	f.messages = nil

	return texts
}

func (f *fakeSender) last(chatID int64) string {
	texts := f.to(chatID)
	if len(texts) == 0 {
		return ""
	}

	return texts[len(texts)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*Handler, *fakeSender, *engine.Engine) {
	t.Helper()

	eng, err := engine.New(inmemory.NewStorage(), engine.WithLogger(discardLogger()))
	require.NoError(t, err)

	sender := &fakeSender{}

	h := New(sender, eng,
		WithLogger(discardLogger()),
		WithAdmins(adminID),
		WithBotUsername("taskmart_bot"),
		WithConversationStore(conversation.NewMemoryStore(conversationTTL)),
	)

	return h, sender, eng
}

func textUpdate(userID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: userID},
			Text: text,
		},
	}
}

func menuUpdate(userID int64, action string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-" + action,
			From: models.User{ID: userID},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{Chat: models.Chat{ID: userID}},
			},
			Data: menuPrefix + action,
		},
	}
}

func TestStartCreatesAccountWithReferrer(t *testing.T) {
	h, sender, eng := newTestHandler(t)
	ctx := context.Background()

	h.handleStart(ctx, textUpdate(1, "/start"))
	assert.Equal(t, textWelcome, sender.last(1))

	h.handleStart(ctx, textUpdate(2, "/start 1"))
	h.handleStart(ctx, textUpdate(3, "/start not-a-number"))

	count, err := eng.CountReferrals(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStartSendsMainMenu(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	h.handleStart(context.Background(), textUpdate(1, "/start"))

	require.Len(t, sender.messages, 1)

	markup, ok := sender.messages[0].markup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, menuPrefix+actionSupport, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, menuPrefix+actionReferral, markup.InlineKeyboard[2][1].CallbackData)
}

func TestTaskFlowFromMenuToApproval(t *testing.T) {
	h, sender, eng := newTestHandler(t)
	ctx := context.Background()

	h.handleStart(ctx, textUpdate(1, "/start"))
	h.handleStart(ctx, textUpdate(2, "/start 1"))

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask 10 24 7 Register an account"))
	assert.Contains(t, sender.last(adminID), "Task 1 created")

	h.handleMenu(ctx, menuUpdate(2, actionTasks))
	assert.Contains(t, sender.last(2), "📋 New Task:\nRegister an account\nReward: $10")
	assert.Equal(t, []string{"cb-" + actionTasks}, sender.answered)

	h.handleText(ctx, textUpdate(2, "login: someone"))
	assert.Contains(t, sender.last(2), "submission #1")

	h.admin(h.handleReviewSubmission("approve"))(ctx, textUpdate(adminID, "/approve 1"))

	texts := sender.to(2)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "+$10")

	balance, err := eng.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))

	bonus, err := eng.GetReferralBonusTotal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, bonus.Equal(decimal.NewFromInt(1)))
}

func TestUnknownCommandKeepsPendingProof(t *testing.T) {
	h, sender, eng := newTestHandler(t)
	ctx := context.Background()

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask 3 24 7 Leave a review"))
	h.handleMenu(ctx, menuUpdate(7, actionTasks))

	h.handleText(ctx, textUpdate(7, "/help"))
	assert.Equal(t, textUnknown, sender.last(7))

	subs, err := eng.ListSubmissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	h.handleText(ctx, textUpdate(7, "review posted"))
	assert.Contains(t, sender.last(7), "submission #1")

	subs, err = eng.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "review posted", subs[0].Proof())
}

func TestAdminNotifiedOfProof(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask 2.5 24 7 Follow the channel"))
	h.handleMenu(ctx, menuUpdate(5, actionTasks))
	sender.to(5)

	h.handleProofCommand(ctx, textUpdate(5, "/proof 1 done it"))

	adminTexts := sender.to(adminID)
	require.Len(t, adminTexts, 1)
	assert.Contains(t, adminTexts[0], "Submission #1 from 5 for task 1:\ndone it")
	assert.Contains(t, adminTexts[0], "/approve 1")
}

func TestNoTasksAvailable(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	h.handleMenu(context.Background(), menuUpdate(1, actionTasks))
	assert.Equal(t, textNoTasks, sender.last(1))
}

func TestDuplicateProofRejected(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask 1 24 7 Task"))
	h.handleMenu(ctx, menuUpdate(5, actionTasks))

	h.handleProofCommand(ctx, textUpdate(5, "/proof 1 first"))
	h.handleProofCommand(ctx, textUpdate(5, "/proof 1 second"))
	assert.Contains(t, sender.last(5), "already have a pending or approved submission")

	h.handleProofCommand(ctx, textUpdate(6, "/proof 1 not mine"))
	assert.Equal(t, "❌ This task is not assigned to you.", sender.last(6))
}

func TestSupportForwardedToAdmins(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.handleMenu(ctx, menuUpdate(7, actionSupport))
	assert.Equal(t, textSupportPrompt, sender.last(7))

	h.handleText(ctx, textUpdate(7, "help please"))

	assert.Equal(t, "📩 Support from 7:\nhelp please", sender.messages[0].text)
	assert.Equal(t, textSupportSent, sender.last(7))

	// The state is consumed by the first message.
	h.handleText(ctx, textUpdate(7, "again"))
	assert.Equal(t, textUnknown, sender.last(7))
}

func TestCancelClearsState(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.handleMenu(ctx, menuUpdate(7, actionSupport))
	h.handleCancel(ctx, textUpdate(7, "/cancel"))
	assert.Equal(t, textCancelled, sender.last(7))

	h.handleText(ctx, textUpdate(7, "hello"))
	assert.Empty(t, sender.to(adminID))
}

func TestWalletAndReferral(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.handleStart(ctx, textUpdate(1, "/start"))

	h.handleMenu(ctx, menuUpdate(1, actionWallet))
	assert.Contains(t, sender.last(1), "💰 Your balance: $0\nMinimum withdraw: $5")

	h.handleMenu(ctx, menuUpdate(1, actionReferral))
	text := sender.last(1)
	assert.Contains(t, text, "https://t.me/taskmart_bot?start=1")
	assert.Contains(t, text, "Total referral bonus earned: $0")

	h.handleMenu(ctx, menuUpdate(1, actionAccounts))
	assert.Equal(t, textNoHeldTasks, sender.last(1))

	h.handleMenu(ctx, menuUpdate(1, actionSettings))
	assert.Equal(t, textSettings, sender.last(1))
}

func TestWithdrawFlow(t *testing.T) {
	h, sender, eng := newTestHandler(t)
	ctx := context.Background()

	h.handleWithdraw(ctx, textUpdate(3, "/withdraw"))
	assert.Equal(t, "Usage: /withdraw <amount>", sender.last(3))

	h.handleWithdraw(ctx, textUpdate(3, "/withdraw 2"))
	assert.Equal(t, "❌ Minimum withdraw: $5", sender.last(3))

	h.handleWithdraw(ctx, textUpdate(3, "/withdraw 6"))
	assert.Equal(t, "❌ Insufficient balance.", sender.last(3))

	task, err := eng.CreateTask(ctx, "Task", decimal.NewFromInt(8), 24, 7)
	require.NoError(t, err)
	_, err = eng.AssignTask(ctx, 3)
	require.NoError(t, err)
	sub, err := eng.SubmitProof(ctx, 3, task.ID(), "proof")
	require.NoError(t, err)
	_, err = eng.ReviewSubmission(ctx, sub.ID(), "approve")
	require.NoError(t, err)

	h.handleWithdraw(ctx, textUpdate(3, "/withdraw 6"))
	assert.Contains(t, sender.to(adminID), "💸 Withdrawal #1 from 3: $6\n/wd_approve 1 | /wd_reject 1")

	h.admin(h.handleReviewWithdrawal("pay"))(ctx, textUpdate(adminID, "/wd_paid 1"))
	assert.Equal(t, "❌ withdrawal cannot pay from status pending.", sender.last(adminID))

	h.admin(h.handleReviewWithdrawal("approve"))(ctx, textUpdate(adminID, "/wd_approve 1"))
	h.admin(h.handleReviewWithdrawal("pay"))(ctx, textUpdate(adminID, "/wd_paid 1"))
	assert.Equal(t, "💸 Your withdrawal #1 for $6 was paid.", sender.last(3))

	balance, err := eng.GetBalance(ctx, 3)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(2)))
}

func TestAdminCommandsIgnoreOthers(t *testing.T) {
	h, sender, eng := newTestHandler(t)
	ctx := context.Background()

	h.admin(h.handleAddTask)(ctx, textUpdate(42, "/addtask 10 24 7 Sneaky"))
	assert.Empty(t, sender.messages)

	stats, err := eng.TaskStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Open)
}

func TestAddTaskUsage(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	for _, text := range []string{
		"/addtask",
		"/addtask ten 24 7 text",
		"/addtask 10 x 7 text",
		"/addtask 10 24 y text",
	} {
		h.admin(h.handleAddTask)(ctx, textUpdate(adminID, text))
		assert.Equal(t, addTaskUsage, sender.last(adminID), text)
	}

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask -1 24 7 text"))
	assert.True(t, strings.HasPrefix(sender.last(adminID), "❌ "))
}

func TestPendingListsQueues(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	ctx := context.Background()

	h.admin(h.handleAddTask)(ctx, textUpdate(adminID, "/addtask 1 24 7 Task"))
	h.handleMenu(ctx, menuUpdate(5, actionTasks))
	h.handleProofCommand(ctx, textUpdate(5, "/proof 1 link"))
	sender.to(adminID)

	h.admin(h.handlePending)(ctx, textUpdate(adminID, "/pending"))

	text := sender.last(adminID)
	assert.Contains(t, text, "Pending submissions: 1\n#1 user 5 task 1: link")
	assert.Contains(t, text, "Open withdrawals: 0")
}

func TestRateLimitMiddleware(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	var calls int

	next := func(context.Context, *bot.Bot, *models.Update) { calls++ }
	mw := h.RateLimit(NewRateLimiter(0.001, 2))(next)

	for i := 0; i < 3; i++ {
		mw(context.Background(), nil, textUpdate(9, "hi"))
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, textThrottled, sender.last(9))

	for i := 0; i < 3; i++ {
		mw(context.Background(), nil, textUpdate(adminID, "hi"))
	}

	assert.Equal(t, 5, calls)
}

func TestRecoverMiddleware(t *testing.T) {
	h, _, _ := newTestHandler(t)

	mw := h.Recover()(func(context.Context, *bot.Bot, *models.Update) { panic("boom") })

	assert.NotPanics(t, func() {
		mw(context.Background(), nil, textUpdate(1, "hi"))
	})
}
