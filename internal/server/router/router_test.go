package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andymarkow/taskmart/internal/auth"
	"github.com/andymarkow/taskmart/internal/engine"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/andymarkow/taskmart/internal/server/models"
	"github.com/andymarkow/taskmart/internal/storage/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	tokens map[auth.Role]string
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := engine.New(inmemory.NewStorage(), engine.WithLogger(logger))
	require.NoError(t, err)

	frontHash, err := bcrypt.GenerateFromPassword([]byte("front"), bcrypt.MinCost)
	require.NoError(t, err)

	reviewHash, err := bcrypt.GenerateFromPassword([]byte("review"), bcrypt.MinCost)
	require.NoError(t, err)

	opts = append([]Option{
		WithLogger(logger),
		WithSecret([]byte("test-secret")),
		WithClients(auth.NewClients(string(frontHash), string(reviewHash))),
	}, opts...)

	srv := httptest.NewServer(NewRouter(eng, opts...))
	t.Cleanup(srv.Close)

	api := &testAPI{t: t, srv: srv, tokens: make(map[auth.Role]string)}
	api.tokens[auth.RoleFrontend] = api.token("frontend", "front")
	api.tokens[auth.RoleReviewer] = api.token("reviewer", "review")

	return api
}

func (a *testAPI) token(client, secret string) string {
	resp, body := a.do("", http.MethodPost, "/api/auth/token", models.TokenRequest{Client: client, Secret: secret})
	require.Equal(a.t, http.StatusOK, resp.StatusCode, body)

	var tokenResp models.TokenResponse
	require.NoError(a.t, json.Unmarshal([]byte(body), &tokenResp))
	require.NotEmpty(a.t, tokenResp.Token)

	return tokenResp.Token
}

func (a *testAPI) do(token, method, path string, payload any) (*http.Response, string) {
	a.t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(a.t, err)

		body = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(a.t, err)

	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)

	return resp, string(respBody)
}

func (a *testAPI) front(method, path string, payload any) (*http.Response, string) {
	return a.do(a.tokens[auth.RoleFrontend], method, path, payload)
}

func (a *testAPI) admin(method, path string, payload any) (*http.Response, string) {
	return a.do(a.tokens[auth.RoleReviewer], method, path, payload)
}

func TestPing(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do("", http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ok"}`, body)
}

func TestIssueTokenRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do("", http.MethodPost, "/api/auth/token", models.TokenRequest{Client: "frontend", Secret: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do("", http.MethodPost, "/api/auth/token", models.TokenRequest{Client: "root", Secret: "front"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do("", http.MethodPost, "/api/auth/token", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRolesAreEnforced(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do("", http.MethodGet, "/api/users/1/balance", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.admin(http.MethodGet, "/api/users/1/balance", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = api.front(http.MethodGet, "/api/admin/submissions", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMarketplaceFlow(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.front(http.MethodPost, "/api/users/1/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	referrer := int64(1)
	resp, body = api.front(http.MethodPost, "/api/users/2/account", models.AccountRequest{ReferrerID: &referrer})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"referred_by":1`)

	resp, _ = api.front(http.MethodPost, "/api/users/2/tasks/assign", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = api.admin(http.MethodPost, "/api/admin/tasks", models.TaskRequest{
		Text: "Register", Reward: decimal.NewFromInt(10), VisibleHours: 24, HoldDays: 7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = api.front(http.MethodPost, "/api/users/2/tasks/assign", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var task models.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(body), &task))
	assert.EqualValues(t, 1, task.ID)

	resp, body = api.front(http.MethodGet, "/api/users/2/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = api.front(http.MethodPost, "/api/users/2/submissions",
		models.SubmissionRequest{TaskID: task.ID, Proof: "done"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)

	resp, _ = api.front(http.MethodPost, "/api/users/2/submissions",
		models.SubmissionRequest{TaskID: task.ID, Proof: "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = api.admin(http.MethodGet, "/api/admin/submissions?status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var pending []models.SubmissionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &pending))
	require.Len(t, pending, 1)

	resp, body = api.admin(http.MethodPost, "/api/admin/submissions/1/review", models.ReviewRequest{Verdict: "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var review models.SubmissionReviewResponse
	require.NoError(t, json.Unmarshal([]byte(body), &review))
	assert.True(t, review.Balance.Equal(decimal.NewFromInt(10)))
	assert.True(t, review.ReferralBonus.Equal(decimal.NewFromInt(1)))

	resp, _ = api.admin(http.MethodPost, "/api/admin/submissions/1/review", models.ReviewRequest{Verdict: "approve"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = api.front(http.MethodGet, "/api/users/1/referral", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var ref models.ReferralResponse
	require.NoError(t, json.Unmarshal([]byte(body), &ref))
	assert.EqualValues(t, 1, ref.Referrals)
	assert.True(t, ref.BonusTotal.Equal(decimal.NewFromInt(1)))

	resp, _ = api.front(http.MethodPost, "/api/users/2/withdrawals",
		models.WithdrawalRequest{Amount: decimal.NewFromInt(11)})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp, _ = api.front(http.MethodPost, "/api/users/2/withdrawals",
		models.WithdrawalRequest{Amount: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.front(http.MethodPost, "/api/users/2/withdrawals",
		models.WithdrawalRequest{Amount: decimal.NewFromInt(6)})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)

	resp, _ = api.admin(http.MethodPost, "/api/admin/withdrawals/1/review", models.ReviewRequest{Verdict: "pay"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = api.admin(http.MethodPost, "/api/admin/withdrawals/1/review", models.ReviewRequest{Verdict: "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = api.admin(http.MethodPost, "/api/admin/withdrawals/1/review", models.ReviewRequest{Verdict: "pay"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"status":"paid"`)

	resp, body = api.front(http.MethodGet, "/api/users/2/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var balance models.BalanceResponse
	require.NoError(t, json.Unmarshal([]byte(body), &balance))
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(4)))

	resp, body = api.front(http.MethodGet, "/api/users/2/withdrawals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = api.admin(http.MethodGet, "/api/admin/tasks/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"open":0,"expired_unclaimed":0,"held":1,"hold_elapsed":0}`, body)
}

func TestAdminLookups(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.admin(http.MethodGet, "/api/admin/accounts/3", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.admin(http.MethodGet, "/api/admin/tasks/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := api.admin(http.MethodPost, "/api/admin/tasks", models.TaskRequest{
		Text: "Follow", Reward: decimal.RequireFromString("0.000000001"), VisibleHours: 24,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = api.admin(http.MethodPost, "/api/admin/tasks", models.TaskRequest{
		Text: "Follow", Reward: decimal.NewFromInt(2), VisibleHours: 24, HoldDays: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = api.front(http.MethodPost, "/api/users/3/tasks/assign", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = api.admin(http.MethodGet, "/api/admin/tasks/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var task models.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(body), &task))
	require.NotNil(t, task.AssignedUser)
	assert.EqualValues(t, 3, *task.AssignedUser)

	resp, body = api.admin(http.MethodGet, "/api/admin/accounts/3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"user_id":3`)

	resp, _ = api.admin(http.MethodGet, "/api/admin/submissions/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = api.front(http.MethodPost, "/api/users/3/submissions",
		models.SubmissionRequest{TaskID: 1, Proof: "followed"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)

	resp, body = api.admin(http.MethodGet, "/api/admin/submissions/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var sub models.SubmissionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &sub))
	assert.Equal(t, "followed", sub.Proof)

	resp, _ = api.admin(http.MethodGet, "/api/admin/withdrawals/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.admin(http.MethodGet, "/api/admin/withdrawals/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.front(http.MethodGet, "/api/users/abc/balance", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.admin(http.MethodPost, "/api/admin/submissions/99/review", models.ReviewRequest{Verdict: "approve"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.admin(http.MethodGet, "/api/admin/submissions?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.admin(http.MethodPost, "/api/admin/submissions/1/review", models.ReviewRequest{Verdict: "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.admin(http.MethodPost, "/api/admin/tasks", models.TaskRequest{Text: "", Reward: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.front(http.MethodGet, "/api/users/5/withdrawals", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	api := newTestAPI(t, WithMetrics(collector))

	api.do("", http.MethodGet, "/ping", nil)

	resp, body := api.do("", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `taskmart_http_requests_total{method="GET",path="/ping",status="200"}`)
}

func TestTelegramWebhookMounted(t *testing.T) {
	var hit bool

	api := newTestAPI(t, WithTelegramWebhook(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true

		w.WriteHeader(http.StatusOK)
	})))

	resp, _ := api.do("", http.MethodPost, TelegramWebhookPath, map[string]any{"update_id": 1})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, hit)
}
