package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/andymarkow/taskmart/internal/auth"
	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/errmsg"
	"github.com/andymarkow/taskmart/internal/server/models"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"
)

// Ledger is the engine surface served over HTTP.
type Ledger interface {
	Ping(ctx context.Context) error
	EnsureAccount(ctx context.Context, userID int64, referrer *int64) (*accounts.Account, error)
	GetAccount(ctx context.Context, userID int64) (*accounts.Account, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	CreateTask(ctx context.Context, text string, reward decimal.Decimal, visibleHours, holdDays int) (*tasks.Task, error)
	GetTask(ctx context.Context, taskID int64) (*tasks.Task, error)
	AssignTask(ctx context.Context, userID int64) (*tasks.Task, error)
	ListHeldTasks(ctx context.Context, userID int64) ([]*tasks.Task, error)
	TaskStats(ctx context.Context) (tasks.Stats, error)
	SubmitProof(ctx context.Context, userID, taskID int64, proof string) (*submissions.Submission, error)
	ReviewSubmission(
		ctx context.Context, submissionID int64, verdict submissions.Verdict,
	) (*storage.SubmissionReview, error)
	GetSubmission(ctx context.Context, submissionID int64) (*submissions.Submission, error)
	ListSubmissions(ctx context.Context, statuses ...submissions.Status) ([]*submissions.Submission, error)
	GetReferralBonusTotal(ctx context.Context, userID int64) (decimal.Decimal, error)
	CountReferrals(ctx context.Context, userID int64) (int64, error)
	ReferralBonusRate() decimal.Decimal
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (*withdrawals.Withdrawal, error)
	ReviewWithdrawal(
		ctx context.Context, withdrawalID int64, verdict withdrawals.Verdict,
	) (*withdrawals.Withdrawal, error)
	GetWithdrawal(ctx context.Context, withdrawalID int64) (*withdrawals.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]*withdrawals.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, statuses ...withdrawals.Status) ([]*withdrawals.Withdrawal, error)
	MinWithdraw() decimal.Decimal
}

type Handlers struct {
	ledger  Ledger
	log     *slog.Logger
	auth    *auth.JWTAuth
	clients *auth.Clients
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(ledger Ledger, opts ...Option) *Handlers {
	handlers := &Handlers{
		ledger:  ledger,
		log:     slog.Default(),
		auth:    auth.NewJWTAuth([]byte("")),
		clients: auth.NewClients("", ""),
	}

	// Apply options
	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

// WithLogger is a option for Handlers that sets logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger
	}
}

func WithAuth(auth *auth.JWTAuth) Option {
	return func(h *Handlers) {
		h.auth = auth
	}
}

func WithClients(clients *auth.Clients) Option {
	return func(h *Handlers) {
		h.clients = clients
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// fail maps an engine error to its HTTP form. Server errors are logged at
// error level, client errors at debug.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	httpErr := errmsg.FromError(err)

	if httpErr.Code >= http.StatusInternalServerError {
		h.log.Error(op, slog.Any("error", err))
	} else {
		h.log.Debug(op, slog.Any("error", err))
	}

	handleError(w, httpErr)
}

// decodeJSON reads the request body into v and reports a decoding failure
// to the client itself.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Debug("json.NewDecoder().Decode()", slog.Any("error", err))

		if errors.Is(err, io.EOF) {
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return false
		}

		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		handleError(w, errmsg.ErrPathParamInvalid)

		return 0, false
	}

	return id, true
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.log.Error("ledger.Ping", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

// IssueToken exchanges a client secret for a JWT carrying the client's role.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	role, err := h.clients.Authenticate(req.Client, req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrClientUnknown) || errors.Is(err, auth.ErrCredentialsInvalid) {
			h.log.Warn("client authentication failed", slog.String("client", req.Client))
			handleError(w, errmsg.ErrClientCredentialsInvalid)

			return
		}

		h.log.Error("clients.Authenticate()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	token, err := h.auth.CreateJWTString(req.Client, role)
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	handleJSONResponse(w, http.StatusOK, models.TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.auth.TokenTTL().Seconds()),
	})
}

// RequireRole lets through requests whose verified token carries role.
// It must run after jwtauth.Verifier and jwtauth.Authenticator.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				handleError(w, errmsg.NewHTTPError(http.StatusUnauthorized, err))

				return
			}

			if claimed, _ := claims[auth.RoleClaim].(string); claimed != string(role) {
				handleError(w, errmsg.ErrRoleForbidden)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
