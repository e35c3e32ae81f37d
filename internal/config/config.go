package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServerAddr         string        `env:"RUN_ADDRESS"`
	LogLevel           string        `env:"LOG_LEVEL"`
	LogFormat          string        `env:"LOG_FORMAT"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	JWTSecretKey       string        `env:"JWT_SECRET_KEY"`
	JWTTokenTTL        time.Duration `env:"JWT_TOKEN_TTL"`
	FrontendSecretHash string        `env:"FRONTEND_SECRET_HASH"`
	ReviewerSecretHash string        `env:"REVIEWER_SECRET_HASH"`
	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS"`

	ReferralBonusRate string `env:"REFERRAL_BONUS_PERCENT"`
	MinWithdraw       string `env:"MIN_WITHDRAW"`
	SweepSchedule     string `env:"SWEEP_SCHEDULE"`

	TelegramBotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminIDs      string        `env:"TELEGRAM_ADMIN_IDS"`
	TelegramBotUsername   string        `env:"TELEGRAM_BOT_USERNAME"`
	TelegramWebhookURL    string        `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramWebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`
	TelegramRateLimit     float64       `env:"TELEGRAM_RATE_LIMIT"`
	TelegramRateBurst     int           `env:"TELEGRAM_RATE_BURST"`
	ConversationTTL       time.Duration `env:"CONVERSATION_TTL"`

	RedisURL         string `env:"REDIS_URL"`
	AMQPURL          string `env:"AMQP_URL"`
	AMQPExchange     string `env:"AMQP_EXCHANGE"`
	EventsWebhookURL string `env:"EVENTS_WEBHOOK_URL"`
}

// NewConfig reads flags from args, then lets the environment override them.
// A .env file in the working directory is loaded into the environment first
// when present.
func NewConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("godotenv.Load: %w", err)
	}

	cfg := Config{}

	fset := flag.NewFlagSet("taskmart", flag.ContinueOnError)

	fset.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	fset.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	fset.StringVar(&cfg.LogFormat, "log-format", "json", "log output format: json or text [env:LOG_FORMAT]")
	fset.StringVar(&cfg.DatabaseURI, "d", "", "database connection string, in-memory storage when empty [env:DATABASE_URI]")
	fset.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to sign tokens [env:JWT_SECRET_KEY]")
	fset.DurationVar(&cfg.JWTTokenTTL, "token-ttl", 24*time.Hour, "JWT lifetime [env:JWT_TOKEN_TTL]")
	fset.StringVar(&cfg.FrontendSecretHash, "frontend-secret-hash", "",
		"bcrypt hash of the frontend client secret [env:FRONTEND_SECRET_HASH]")
	fset.StringVar(&cfg.ReviewerSecretHash, "reviewer-secret-hash", "",
		"bcrypt hash of the reviewer client secret [env:REVIEWER_SECRET_HASH]")
	fset.StringVar(&cfg.CORSAllowedOrigins, "cors-origins", "*", "comma separated CORS origins [env:CORS_ALLOWED_ORIGINS]")
	fset.StringVar(&cfg.ReferralBonusRate, "referral-rate", "0.1",
		"share of a reward paid to the referrer [env:REFERRAL_BONUS_PERCENT]")
	fset.StringVar(&cfg.MinWithdraw, "min-withdraw", "5", "minimum withdrawal amount [env:MIN_WITHDRAW]")
	fset.StringVar(&cfg.SweepSchedule, "sweep", "@every 1m", "task pool sweep cron schedule [env:SWEEP_SCHEDULE]")
	fset.StringVar(&cfg.TelegramBotToken, "telegram-token", "", "telegram bot token, bot disabled when empty [env:TELEGRAM_BOT_TOKEN]")
	fset.StringVar(&cfg.TelegramAdminIDs, "telegram-admins", "", "comma separated admin user ids [env:TELEGRAM_ADMIN_IDS]")
	fset.StringVar(&cfg.TelegramBotUsername, "telegram-username", "",
		"bot username for referral links, fetched when empty [env:TELEGRAM_BOT_USERNAME]")
	fset.StringVar(&cfg.TelegramWebhookURL, "telegram-webhook", "",
		"public webhook URL, long polling when empty [env:TELEGRAM_WEBHOOK_URL]")
	fset.StringVar(&cfg.TelegramWebhookSecret, "telegram-webhook-secret", "",
		"webhook secret token [env:TELEGRAM_WEBHOOK_SECRET]")
	fset.Float64Var(&cfg.TelegramRateLimit, "telegram-rate", 1, "updates per second per user [env:TELEGRAM_RATE_LIMIT]")
	fset.IntVar(&cfg.TelegramRateBurst, "telegram-burst", 5, "update burst per user [env:TELEGRAM_RATE_BURST]")
	fset.DurationVar(&cfg.ConversationTTL, "conversation-ttl", 30*time.Minute,
		"lifetime of pending chat state [env:CONVERSATION_TTL]")
	fset.StringVar(&cfg.RedisURL, "redis", "", "redis URL for chat state, in-memory when empty [env:REDIS_URL]")
	fset.StringVar(&cfg.AMQPURL, "amqp", "", "AMQP URL for event publishing [env:AMQP_URL]")
	fset.StringVar(&cfg.AMQPExchange, "amqp-exchange", "taskmart.events", "AMQP topic exchange [env:AMQP_EXCHANGE]")
	fset.StringVar(&cfg.EventsWebhookURL, "events-webhook", "", "URL receiving events as JSON [env:EVENTS_WEBHOOK_URL]")

	if err := fset.Parse(args); err != nil {
		return cfg, fmt.Errorf("fset.Parse: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if _, err := c.BonusRate(); err != nil {
		return err
	}

	if _, err := c.MinWithdrawAmount(); err != nil {
		return err
	}

	if _, err := c.AdminIDs(); err != nil {
		return err
	}

	if c.TelegramRateLimit <= 0 || c.TelegramRateBurst <= 0 {
		return fmt.Errorf("telegram rate limit and burst must be positive")
	}

	return nil
}

func (c Config) BonusRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.ReferralBonusRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid referral bonus rate %q: %w", c.ReferralBonusRate, err)
	}

	return rate, nil
}

func (c Config) MinWithdrawAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(c.MinWithdraw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid minimum withdrawal %q: %w", c.MinWithdraw, err)
	}

	return amount, nil
}

func (c Config) AdminIDs() ([]int64, error) {
	return parseIDs(c.TelegramAdminIDs)
}

func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func parseIDs(raw string) ([]int64, error) {
	items := splitList(raw)
	ids := make([]int64, 0, len(items))

	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", item, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func splitList(raw string) []string {
	var items []string

	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
