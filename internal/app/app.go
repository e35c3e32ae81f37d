package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/andymarkow/taskmart/internal/auth"
	"github.com/andymarkow/taskmart/internal/config"
	"github.com/andymarkow/taskmart/internal/conversation"
	"github.com/andymarkow/taskmart/internal/engine"
	"github.com/andymarkow/taskmart/internal/events"
	"github.com/andymarkow/taskmart/internal/logger"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/andymarkow/taskmart/internal/server"
	"github.com/andymarkow/taskmart/internal/server/router"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/andymarkow/taskmart/internal/storage/inmemory"
	"github.com/andymarkow/taskmart/internal/storage/pgstorage"
	"github.com/andymarkow/taskmart/internal/sweeper"
	"github.com/andymarkow/taskmart/internal/telegram"
	"github.com/redis/go-redis/v9"
)

const cleanupInterval = 5 * time.Minute

type Application struct {
	log       *slog.Logger
	store     storage.Storage
	publisher events.Publisher
	redis     *redis.Client
	server    *server.Server
	sweeper   *sweeper.Sweeper
	bot       *telegram.Client
	limiter   *telegram.RateLimiter
	memConv   *conversation.MemoryStore
}

func New(ctx context.Context, args []string) (*Application, error) {
	cfg, err := config.NewConfig(args)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logFormat, err := logger.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogFormat: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logFormat),
		logger.WithAddSource(false),
	)

	app := &Application{log: logg}

	if err := app.init(ctx, cfg); err != nil {
		app.close()

		return nil, err
	}

	return app, nil
}

func (a *Application) init(ctx context.Context, cfg config.Config) error {
	collector := metrics.NewCollector()

	store, err := newStore(ctx, cfg, a.log)
	if err != nil {
		return err
	}

	a.store = storage.NewStorage(store)

	a.publisher, err = newPublisher(cfg, a.log)
	if err != nil {
		return err
	}

	bonusRate, err := cfg.BonusRate()
	if err != nil {
		return fmt.Errorf("cfg.BonusRate: %w", err)
	}

	minWithdraw, err := cfg.MinWithdrawAmount()
	if err != nil {
		return fmt.Errorf("cfg.MinWithdrawAmount: %w", err)
	}

	eng, err := engine.New(a.store,
		engine.WithLogger(a.log),
		engine.WithPublisher(a.publisher),
		engine.WithMetrics(collector),
		engine.WithReferralBonusRate(bonusRate),
		engine.WithMinWithdraw(minWithdraw),
	)
	if err != nil {
		return fmt.Errorf("engine.New: %w", err)
	}

	a.sweeper = sweeper.New(eng,
		sweeper.WithLogger(a.log),
		sweeper.WithMetrics(collector),
		sweeper.WithSchedule(cfg.SweepSchedule),
	)

	routerOpts := []router.Option{
		router.WithLogger(a.log),
		router.WithSecret([]byte(cfg.JWTSecretKey)),
		router.WithAuth(auth.NewJWTAuth([]byte(cfg.JWTSecretKey), auth.WithTokenTTL(cfg.JWTTokenTTL))),
		router.WithClients(auth.NewClients(cfg.FrontendSecretHash, cfg.ReviewerSecretHash)),
		router.WithMetrics(collector),
		router.WithAllowedOrigins(cfg.AllowedOrigins()...),
	}

	if cfg.TelegramBotToken != "" {
		if err := a.initBot(ctx, cfg, eng, collector); err != nil {
			return err
		}

		if handler := a.bot.WebhookHandler(); handler != nil {
			routerOpts = append(routerOpts, router.WithTelegramWebhook(handler))
		}
	} else {
		a.log.Info("telegram bot token not set, bot disabled")
	}

	a.server = server.NewServer(
		router.NewRouter(eng, routerOpts...),
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(a.log),
	)

	return nil
}

func newStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURI == "" {
		log.Info("database URI not set, using in-memory storage")

		return inmemory.NewStorage(), nil
	}

	pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(ctx); err != nil {
		pgstore.Close() //nolint:errcheck

		return nil, fmt.Errorf("pgstore.Bootstrap: %w", err)
	}

	return pgstore, nil
}

func newPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	var publishers events.Multi

	if cfg.AMQPURL != "" {
		rmq, err := events.NewRabbitMQ(cfg.AMQPURL,
			events.WithRabbitMQLogger(log),
			events.WithExchange(cfg.AMQPExchange),
		)
		if err != nil {
			return nil, fmt.Errorf("events.NewRabbitMQ: %w", err)
		}

		publishers = append(publishers, rmq)
	}

	if cfg.EventsWebhookURL != "" {
		publishers = append(publishers, events.NewWebhook(cfg.EventsWebhookURL))
	}

	switch len(publishers) {
	case 0:
		return events.Noop{}, nil
	case 1:
		return publishers[0], nil
	default:
		return publishers, nil
	}
}

func (a *Application) initBot(ctx context.Context, cfg config.Config, eng *engine.Engine, collector *metrics.Collector) error {
	adminIDs, err := cfg.AdminIDs()
	if err != nil {
		return fmt.Errorf("cfg.AdminIDs: %w", err)
	}

	var conv conversation.Store

	if cfg.RedisURL == "" {
		a.memConv = conversation.NewMemoryStore(cfg.ConversationTTL)
		conv = a.memConv
	} else {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis.ParseURL: %w", err)
		}

		a.redis = redis.NewClient(redisOpts)

		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis.Ping: %w", err)
		}

		conv = conversation.NewRedisStore(a.redis, cfg.ConversationTTL)
	}

	handler := telegram.New(nil, eng,
		telegram.WithLogger(a.log),
		telegram.WithConversationStore(conv),
		telegram.WithMetrics(collector),
		telegram.WithAdmins(adminIDs...),
		telegram.WithBotUsername(cfg.TelegramBotUsername),
	)

	a.limiter = telegram.NewRateLimiter(cfg.TelegramRateLimit, cfg.TelegramRateBurst)

	a.bot, err = telegram.NewClient(ctx, telegram.ClientConfig{
		Token:         cfg.TelegramBotToken,
		WebhookURL:    cfg.TelegramWebhookURL,
		WebhookSecret: cfg.TelegramWebhookSecret,
		Limiter:       a.limiter,
	}, handler)
	if err != nil {
		return fmt.Errorf("telegram.NewClient: %w", err)
	}

	return nil
}

// Run starts every component and blocks until a shutdown signal arrives or
// one of them fails. It returns once all components have stopped.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	errChan := make(chan error, 3)

	run := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("server.Start", a.server.Start)
	run("sweeper.Run", a.sweeper.Run)

	if a.bot != nil {
		run("bot.Run", a.bot.Run)

		go a.cleanup(ctx)
	}

	var err error

	select {
	case err = <-errChan:
	case <-ctx.Done():
		a.log.Info("Gracefully shutting down application...")
	}

	cancel()
	wg.Wait()

	return err
}

// cleanup periodically drops idle rate limiters and expired in-memory
// conversation states.
func (a *Application) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Cleanup()

			if a.memConv != nil {
				a.memConv.Cleanup()
			}
		}
	}
}

func (a *Application) close() {
	var errs []error

	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}

	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}

	if a.store != nil {
		errs = append(errs, a.store.Close())
	}

	if err := errors.Join(errs...); err != nil {
		a.log.Error("failed to release resources", slog.String("error", err.Error()))
	}
}
