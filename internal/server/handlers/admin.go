package handlers

import (
	"net/http"
	"strings"

	"github.com/andymarkow/taskmart/internal/domain/submissions"
	"github.com/andymarkow/taskmart/internal/domain/withdrawals"
	"github.com/andymarkow/taskmart/internal/errmsg"
	"github.com/andymarkow/taskmart/internal/server/models"
)

const idParamName = "id"

// statusFilter splits a comma separated ?status= value.
func statusFilter(r *http.Request) []string {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}

	return strings.Split(raw, ",")
}

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	task, err := h.ledger.CreateTask(r.Context(), req.Text, req.Reward, req.VisibleHours, req.HoldDays)
	if err != nil {
		h.fail(w, "ledger.CreateTask()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewTaskResponse(task))
}

func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.TaskStats(r.Context())
	if err != nil {
		h.fail(w, "ledger.TaskStats()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.TaskStatsResponse{
		Open:             stats.Open,
		ExpiredUnclaimed: stats.ExpiredUnclaimed,
		Held:             stats.Held,
		HoldElapsed:      stats.HoldElapsed,
	})
}

func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	var statuses []submissions.Status

	for _, raw := range statusFilter(r) {
		status, err := submissions.ParseStatus(raw)
		if err != nil {
			h.fail(w, "submissions.ParseStatus()", err)

			return
		}

		statuses = append(statuses, status)
	}

	subs, err := h.ledger.ListSubmissions(r.Context(), statuses...)
	if err != nil {
		h.fail(w, "ledger.ListSubmissions()", err)

		return
	}

	resp := make([]models.SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, models.NewSubmissionResponse(sub))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) ReviewSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, idParamName)
	if !ok {
		return
	}

	var req models.ReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	verdict, err := submissions.ParseVerdict(req.Verdict)
	if err != nil {
		handleError(w, errmsg.FromError(err))

		return
	}

	review, err := h.ledger.ReviewSubmission(r.Context(), id, verdict)
	if err != nil {
		h.fail(w, "ledger.ReviewSubmission()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.SubmissionReviewResponse{
		Submission:    models.NewSubmissionResponse(review.Submission),
		Reward:        review.Reward,
		Balance:       review.Balance,
		ReferrerID:    review.ReferrerID,
		ReferralBonus: review.Bonus,
	})
}

func (h *Handlers) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	var statuses []withdrawals.Status

	for _, raw := range statusFilter(r) {
		status, err := withdrawals.ParseStatus(raw)
		if err != nil {
			h.fail(w, "withdrawals.ParseStatus()", err)

			return
		}

		statuses = append(statuses, status)
	}

	list, err := h.ledger.ListWithdrawalsByStatus(r.Context(), statuses...)
	if err != nil {
		h.fail(w, "ledger.ListWithdrawalsByStatus()", err)

		return
	}

	resp := make([]models.WithdrawalResponse, 0, len(list))
	for _, withdrawal := range list {
		resp = append(resp, models.NewWithdrawalResponse(withdrawal))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) ReviewWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, idParamName)
	if !ok {
		return
	}

	var req models.ReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	verdict, err := withdrawals.ParseVerdict(req.Verdict)
	if err != nil {
		handleError(w, errmsg.FromError(err))

		return
	}

	withdrawal, err := h.ledger.ReviewWithdrawal(r.Context(), id, verdict)
	if err != nil {
		h.fail(w, "ledger.ReviewWithdrawal()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewWithdrawalResponse(withdrawal))
}

// GetAccount looks an account up without creating it.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.GetAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, idParamName)
	if !ok {
		return
	}

	task, err := h.ledger.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, "ledger.GetTask()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTaskResponse(task))
}

func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, idParamName)
	if !ok {
		return
	}

	sub, err := h.ledger.GetSubmission(r.Context(), id)
	if err != nil {
		h.fail(w, "ledger.GetSubmission()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewSubmissionResponse(sub))
}

func (h *Handlers) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, idParamName)
	if !ok {
		return
	}

	withdrawal, err := h.ledger.GetWithdrawal(r.Context(), id)
	if err != nil {
		h.fail(w, "ledger.GetWithdrawal()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewWithdrawalResponse(withdrawal))
}
