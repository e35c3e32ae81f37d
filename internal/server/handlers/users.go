package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/andymarkow/taskmart/internal/errmsg"
	"github.com/andymarkow/taskmart/internal/server/models"
)

const userIDParam = "userID"

func (h *Handlers) EnsureAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	var req models.AccountRequest

	defer r.Body.Close()

	// An empty body means no referrer.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	account, err := h.ledger.EnsureAccount(r.Context(), userID, req.ReferrerID)
	if err != nil {
		h.fail(w, "ledger.EnsureAccount()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.GetBalance()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.BalanceResponse{
		UserID:      userID,
		Balance:     balance,
		MinWithdraw: h.ledger.MinWithdraw(),
	})
}

func (h *Handlers) GetReferral(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	total, err := h.ledger.GetReferralBonusTotal(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.GetReferralBonusTotal()", err)

		return
	}

	count, err := h.ledger.CountReferrals(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.CountReferrals()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.ReferralResponse{
		UserID:     userID,
		Referrals:  count,
		BonusTotal: total,
		BonusRate:  h.ledger.ReferralBonusRate(),
	})
}

func (h *Handlers) AssignTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	task, err := h.ledger.AssignTask(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.AssignTask()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTaskResponse(task))
}

func (h *Handlers) GetHeldTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	held, err := h.ledger.ListHeldTasks(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.ListHeldTasks()", err)

		return
	}

	if len(held) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.TaskResponse{})

		return
	}

	resp := make([]models.TaskResponse, 0, len(held))
	for _, task := range held {
		resp = append(resp, models.NewTaskResponse(task))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	var req models.SubmissionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.ledger.SubmitProof(r.Context(), userID, req.TaskID, req.Proof)
	if err != nil {
		h.fail(w, "ledger.SubmitProof()", err)

		return
	}

	handleJSONResponse(w, http.StatusAccepted, models.NewSubmissionResponse(sub))
}

func (h *Handlers) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	var req models.WithdrawalRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	withdrawal, err := h.ledger.RequestWithdrawal(r.Context(), userID, req.Amount)
	if err != nil {
		h.fail(w, "ledger.RequestWithdrawal()", err)

		return
	}

	handleJSONResponse(w, http.StatusAccepted, models.NewWithdrawalResponse(withdrawal))
}

func (h *Handlers) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, userIDParam)
	if !ok {
		return
	}

	list, err := h.ledger.ListWithdrawals(r.Context(), userID)
	if err != nil {
		h.fail(w, "ledger.ListWithdrawals()", err)

		return
	}

	if len(list) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.WithdrawalResponse{})

		return
	}

	resp := make([]models.WithdrawalResponse, 0, len(list))
	for _, withdrawal := range list {
		resp = append(resp, models.NewWithdrawalResponse(withdrawal))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}
