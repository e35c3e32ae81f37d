package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
)

const webhookDeleteTimeout = 5 * time.Second

// updateSource is the part of *bot.Bot that delivers updates.
type updateSource interface {
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	WebhookHandler() http.HandlerFunc
}

// Client owns the Bot API connection and the way updates reach the handler.
type Client struct {
	bot        updateSource
	log        *slog.Logger
	webhookURL string
	secret     string
}

type ClientConfig struct {
	Token string
	// WebhookURL switches delivery from long polling to webhooks when set.
	WebhookURL    string
	WebhookSecret string
	Limiter       *RateLimiter
}

// NewClient connects to the Bot API, installs the middleware chain and the
// handlers of h, and makes the new bot the sender of h.
func NewClient(ctx context.Context, cfg ClientConfig, h *Handler) (*Client, error) {
	opts := []bot.Option{
		bot.WithMiddlewares(h.Middlewares(cfg.Limiter)...),
		bot.WithDefaultHandler(h.HandleText),
	}

	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("bot.New: %w", err)
	}

	if h.botUsername == "" {
		me, err := b.GetMe(ctx)
		if err != nil {
			return nil, fmt.Errorf("bot.GetMe: %w", err)
		}

		h.botUsername = me.Username
	}

	h.sender = b
	h.Register(b)

	return &Client{
		bot:        b,
		log:        h.log,
		webhookURL: cfg.WebhookURL,
		secret:     cfg.WebhookSecret,
	}, nil
}

// WebhookHandler returns the HTTP handler receiving updates in webhook mode,
// or nil in polling mode.
func (c *Client) WebhookHandler() http.Handler {
	if c.webhookURL == "" {
		return nil
	}

	return c.bot.WebhookHandler()
}

// Run processes updates until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if c.webhookURL == "" {
		if _, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("bot.DeleteWebhook: %w", err)
		}

		c.log.Info("starting telegram long polling")
		c.bot.Start(ctx)

		return nil
	}

	if _, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         c.webhookURL,
		SecretToken: c.secret,
	}); err != nil {
		return fmt.Errorf("bot.SetWebhook: %w", err)
	}

	c.log.Info("starting telegram webhook processing", slog.String("url", c.webhookURL))
	c.bot.StartWebhook(ctx)

	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), webhookDeleteTimeout)
	defer cancel()

	if _, err := c.bot.DeleteWebhook(deleteCtx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("bot.DeleteWebhook: %w", err)
	}

	c.log.Info("telegram webhook deleted")

	return nil
}
