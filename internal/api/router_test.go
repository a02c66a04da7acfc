package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naruebet/tmwatch/internal/auth"
	"github.com/naruebet/tmwatch/internal/config"
	"github.com/naruebet/tmwatch/internal/middleware"
	"github.com/naruebet/tmwatch/internal/models"
	"github.com/naruebet/tmwatch/internal/services"
	"github.com/naruebet/tmwatch/internal/store"
	"github.com/naruebet/tmwatch/internal/webhook"
	"github.com/naruebet/tmwatch/internal/worker"
)

type testEnv struct {
	router     http.Handler
	adminToken string
	staffToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{Env: "dev", RateRPS: 0}

	eph := store.NewEphemeral(100)
	sel := store.NewSelector(nil, eph, log)

	wp := worker.NewPool(1)
	t.Cleanup(wp.Stop)

	tm := auth.NewTokenManager("test-secret", "test-refresh", time.Hour, time.Hour)
	users := store.NewMemoryUsers()
	userSvc := services.NewUserService(users, tm)
	require.NoError(t, userSvc.EnsureAdmin(context.Background(), "admin"))
	_, err := userSvc.Create(context.Background(), "staffer", "1234", models.RoleStaff)
	require.NoError(t, err)

	txnSvc := services.NewTransactionService(webhook.NewDecoder(log), sel, nil, wp, log)

	env := &testEnv{
		router: NewRouter(cfg, txnSvc, userSvc, store.NewMemorySettings(), middleware.NewAuthMiddleware(tm)),
	}
	env.adminToken = env.login(t, "admin", "admin")
	env.staffToken = env.login(t, "staffer", "1234")
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewBuffer(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Tokens.AccessToken
}

type txnResp struct {
	Status string `json:"status"`
	Data   struct {
		ID     string  `json:"id"`
		Sender string  `json:"sender"`
		Amount float64 `json:"amount"`
		Msg    string  `json:"message"`
	} `json:"data"`
}

func (e *testEnv) ingest(t *testing.T, payload any) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/webhook", "", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp txnResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestWebhookStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/webhook/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "online", resp["status"])
	assert.Equal(t, "disconnected", resp["db_status"])
	assert.NotEmpty(t, resp["timestamp"])
}

func TestWebhookIngestDividesMinorUnits(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/webhook", "", map[string]any{
		"amount":        10050,
		"sender_mobile": "081-111-2222",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp txnResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 100.50, resp.Data.Amount)
	assert.Equal(t, "081-111-2222", resp.Data.Sender)
}

func TestWebhookIngestSignedToken(t *testing.T) {
	env := newTestEnv(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"amount":       2500.0,
		"payer_mobile": "089-000-1111",
	}).SignedString([]byte("provider-key"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/webhook", "", map[string]string{"message": tok})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp txnResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25.0, resp.Data.Amount)
	assert.Equal(t, "089-000-1111", resp.Data.Sender)
}

func TestWebhookRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/webhook", "", map[string]any{"sender_mobile": "081"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWebhookTotalDecodeFailure(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/webhook", "", "definitely not a payload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTransactionsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactionsList(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.ingest(t, map[string]any{"amount": 100 * (i + 1)})
	}

	rec := env.do(t, http.MethodGet, "/transactions?limit=2", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 2)
}

func TestSimulateKeepsMajorUnits(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/transactions/simulate", env.adminToken, map[string]any{
		"amount": 100.5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp txnResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 100.5, resp.Data.Amount)
}

func TestSimulateForbiddenForStaff(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/transactions/simulate", env.staffToken, map[string]any{"amount": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusWorkflowLock(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t, map[string]any{"amount": 10000})
	path := fmt.Sprintf("/transactions/%s/status", id)

	// restricted role needs the explicit confirmation step
	rec := env.do(t, http.MethodPut, path, env.staffToken, map[string]any{"status": "verified"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, path, env.staffToken, map[string]any{"status": "verified", "confirm": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the record is now locked for staff
	rec = env.do(t, http.MethodPut, path, env.staffToken, map[string]any{"status": "issue", "confirm": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// unrestricted roles keep full rights
	rec = env.do(t, http.MethodPut, path, env.adminToken, map[string]any{"status": "refund"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestStatusUpdateMissingRecord(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/transactions/TXN-nope/status", env.adminToken, map[string]any{"status": "verified"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t, map[string]any{"amount": 10000})

	rec := env.do(t, http.MethodDelete, "/transactions/"+id, env.staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/transactions/"+id, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/transactions/"+id, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearTransactions(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, map[string]any{"amount": 10000})

	rec := env.do(t, http.MethodDelete, "/transactions", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cleared"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/transactions", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUserManagement(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/", env.adminToken, map[string]any{
		"username": "somchai", "password": "s3cret", "role": "staff",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// duplicate username, case-insensitive
	rec = env.do(t, http.MethodPost, "/users/", env.adminToken, map[string]any{
		"username": "SOMCHAI", "password": "x1234",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/users/"+created.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// staff cannot manage users at all
	rec = env.do(t, http.MethodGet, "/users/", env.staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSeedAdminCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/users/", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))

	var adminID string
	for _, u := range users {
		if u.Username == "admin" {
			adminID = u.ID
		}
	}
	require.NotEmpty(t, adminID)

	rec = env.do(t, http.MethodDelete, "/users/"+adminID, env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/settings/provider_token", env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/settings/provider_token", env.adminToken, map[string]string{"value": "tok-123"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/settings/provider_token", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"provider_token","value":"tok-123"}`, rec.Body.String())
}
