package router

import (
	"log/slog"
	"net/http"

	"github.com/andymarkow/taskmart/internal/auth"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/andymarkow/taskmart/internal/server/handlers"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

const TelegramWebhookPath = "/telegram/webhook"

type Options struct {
	log             *slog.Logger
	auth            *auth.JWTAuth
	clients         *auth.Clients
	metrics         *metrics.Collector
	allowedOrigins  []string
	telegramWebhook http.Handler
	secret          []byte
}

func NewRouter(ledger handlers.Ledger, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:            slog.Default(),
		secret:         []byte(""),
		clients:        auth.NewClients("", ""),
		allowedOrigins: []string{"*"},
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	if rOpts.auth == nil {
		rOpts.auth = auth.NewJWTAuth(rOpts.secret)
	}

	if rOpts.metrics == nil {
		rOpts.metrics = metrics.NewCollector()
	}

	tokenAuth := jwtauth.New("HS256", rOpts.secret, nil)

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
		cors.Handler(cors.Options{
			AllowedOrigins: rOpts.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"Authorization"},
			MaxAge:         300,
		}),
		rOpts.metrics.InstrumentHandler,
	)

	h := handlers.NewHandlers(ledger,
		handlers.WithLogger(rOpts.log),
		handlers.WithAuth(rOpts.auth),
		handlers.WithClients(rOpts.clients),
	)

	r.Get("/ping", h.Ping)
	r.Method(http.MethodGet, "/metrics", rOpts.metrics.Handler())

	if rOpts.telegramWebhook != nil {
		r.Method(http.MethodPost, TelegramWebhookPath, rOpts.telegramWebhook)
	}

	r.Post("/api/auth/token", h.IssueToken)

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
			handlers.RequireRole(auth.RoleFrontend),
		)

		r.Post("/account", h.EnsureAccount)
		r.Get("/balance", h.GetBalance)
		r.Get("/referral", h.GetReferral)
		r.Post("/tasks/assign", h.AssignTask)
		r.Get("/tasks", h.GetHeldTasks)
		r.Post("/submissions", h.CreateSubmission)
		r.Post("/withdrawals", h.CreateWithdrawal)
		r.Get("/withdrawals", h.GetWithdrawals)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
			handlers.RequireRole(auth.RoleReviewer),
		)

		r.Get("/accounts/{userID}", h.GetAccount)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/stats", h.GetTaskStats)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/submissions", h.ListSubmissions)
		r.Get("/submissions/{id}", h.GetSubmission)
		r.Post("/submissions/{id}/review", h.ReviewSubmission)
		r.Get("/withdrawals", h.ListWithdrawals)
		r.Get("/withdrawals/{id}", h.GetWithdrawal)
		r.Post("/withdrawals/{id}/review", h.ReviewWithdrawal)
	})

	return r
}

type Option func(r *Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

// WithSecret sets the HMAC key used to sign and verify tokens.
func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}

// WithAuth overrides the token issuer built from the secret.
func WithAuth(a *auth.JWTAuth) Option {
	return func(o *Options) {
		o.auth = a
	}
}

func WithClients(clients *auth.Clients) Option {
	return func(o *Options) {
		o.clients = clients
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(o *Options) {
		o.metrics = collector
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(o *Options) {
		o.allowedOrigins = origins
	}
}

// WithTelegramWebhook mounts the bot update handler.
func WithTelegramWebhook(handler http.Handler) Option {
	return func(o *Options) {
		o.telegramWebhook = handler
	}
}
