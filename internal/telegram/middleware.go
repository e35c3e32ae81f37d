package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

const textThrottled = "⏳ Too many requests. Please wait a moment."

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*limiterEntry
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.limiters[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.limiters[userID] = entry
	}

	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// Cleanup forgets users idle for longer than the idle window.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.limiters {
		if time.Since(entry.lastSeen) > r.idle {
			delete(r.limiters, id)
		}
	}
}

// updateMeta extracts what the middlewares need from an update.
func updateMeta(update *models.Update) (kind string, chatID, userID int64) {
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}

		return "message", chatID, userID
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message.Message != nil {
			chatID = update.CallbackQuery.Message.Message.Chat.ID
		}

		return "callback_query", chatID, update.CallbackQuery.From.ID
	default:
		return "other", 0, 0
	}
}

// Middlewares returns the chain installed on the bot, outermost first.
func (h *Handler) Middlewares(limiter *RateLimiter) []bot.Middleware {
	mws := []bot.Middleware{h.Recover(), h.Logging()}

	if limiter != nil {
		mws = append(mws, h.RateLimit(limiter))
	}

	return mws
}

func (h *Handler) Recover() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					h.log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
				}
			}()

			next(ctx, b, update)
		}
	}
}

func (h *Handler) Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			kind, chatID, userID := updateMeta(update)

			h.metrics.TelegramUpdate(kind)

			next(ctx, b, update)

			h.log.Debug("update processed",
				slog.String("type", kind),
				slog.Int64("chat_id", chatID),
				slog.Int64("user_id", userID),
				slog.Duration("duration", time.Since(start)))
		}
	}
}

// RateLimit drops updates from users over their bucket and answers with a notice. Admins are exempt.
func (h *Handler) RateLimit(limiter *RateLimiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			_, chatID, userID := updateMeta(update)
			if userID == 0 || h.isAdmin(userID) || limiter.Allow(userID) {
				next(ctx, b, update)

				return
			}

			h.metrics.TelegramThrottled()
			h.log.Debug("rate limited", slog.Int64("user_id", userID))

			if chatID != 0 {
				h.send(ctx, chatID, textThrottled, nil)
			}
		}
	}
}
