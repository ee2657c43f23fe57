package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/grid"
	"github.com/prudhvinik1/webradegast/internal/metrics"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/repositories"
	"github.com/prudhvinik1/webradegast/internal/services"
	"github.com/prudhvinik1/webradegast/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAuth maps bearer tokens straight to operators.
type stubAuth struct {
	tokens map[string]uuid.UUID
	emails map[string]bool
}

func (a *stubAuth) Authenticate(ctx context.Context, token string) (*services.TokenClaims, error) {
	id, ok := a.tokens[token]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return &services.TokenClaims{OperatorID: id, SessionID: token}, nil
}

func (a *stubAuth) Register(ctx context.Context, email, password string) (*models.Operator, error) {
	if len(password) < utils.PasswordLength {
		return nil, utils.ErrPasswordTooShort
	}
	if a.emails[email] {
		return nil, services.ErrEmailExists
	}
	a.emails[email] = true
	return &models.Operator{ID: uuid.New(), Email: email}, nil
}

func (a *stubAuth) Login(ctx context.Context, email, password string) (*services.LoginResponse, error) {
	if !a.emails[email] {
		return nil, services.ErrInvalidCredentials
	}
	return &services.LoginResponse{Token: "issued", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (a *stubAuth) Logout(ctx context.Context, claims *services.TokenClaims) error {
	delete(a.tokens, claims.SessionID)
	return nil
}

func (a *stubAuth) LogoutAll(ctx context.Context, claims *services.TokenClaims) error {
	for token, id := range a.tokens {
		if id == claims.OperatorID {
			delete(a.tokens, token)
		}
	}
	return nil
}

type accountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func (s *accountStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.OperatorID == account.OperatorID && a.FirstName == account.FirstName && a.LastName == account.LastName {
			return repositories.ErrDuplicate
		}
	}
	account.ID = uuid.New()
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *accountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *accountStore) ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Account
	for _, a := range s.accounts {
		if a.OperatorID == operatorID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *accountStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error {
	return nil
}

func (s *accountStore) ResetStatuses(ctx context.Context) error {
	return nil
}

func (s *accountStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
)

type apiFixture struct {
	handler  http.Handler
	presence *services.PresenceService
	tracker  *services.ConnectionTracker
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	registry := grid.NewRegistry()
	m := metrics.NewNopMetrics()
	tracker := services.NewConnectionTracker(logger)
	presence := services.NewPresenceService(registry, m, logger, 256)
	store := &accountStore{accounts: make(map[uuid.UUID]*models.Account)}
	accounts := services.NewAccountService(store, registry, presence, tracker, nil, logger)
	auth := &stubAuth{
		tokens: map[string]uuid.UUID{aliceToken: uuid.New(), bobToken: uuid.New()},
		emails: map[string]bool{},
	}

	handler := NewRouter(RouterDeps{
		Auth:        auth,
		Accounts:    accounts,
		Presence:    presence,
		Connections: tracker,
		Checks: map[string]ReadyCheck{
			"postgres": func(ctx context.Context) error { return nil },
		},
		Logger: logger,
	})
	return &apiFixture{handler: handler, presence: presence, tracker: tracker}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (f *apiFixture) createAccount(t *testing.T, token, first string) uuid.UUID {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/accounts", token, map[string]string{"first_name": first})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Account](t, rec).ID
}

func (f *apiFixture) loginAccount(t *testing.T, token string, id uuid.UUID) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/accounts/"+id.String()+"/login", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[readyResponse](t, rec).Status)
}

func TestReady_FailingCheck(t *testing.T) {
	handler := Ready(map[string]ReadyCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[readyResponse](t, rec)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestAuthRoutes(t *testing.T) {
	f := newAPIFixture(t)
	creds := map[string]string{"email": "owner@example.com", "password": "correct-horse-battery"}

	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/auth/register", "", creds).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/auth/register", "", creds).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "x@example.com", "password": "short"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/auth/register", "", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "not-an-email", "password": "correct-horse-battery"}).Code)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "issued", decode[services.LoginResponse](t, rec).Token)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "nobody@example.com", "password": "whatever-password"}).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/auth/logout", aliceToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/accounts", aliceToken, nil).Code)
}

func TestAPIRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/accounts", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/presence", "forged", nil).Code)
}

func TestAccountRoutes(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createAccount(t, aliceToken, "Alice")

	assert.Equal(t, http.StatusConflict,
		f.do(t, http.MethodPost, "/api/accounts", aliceToken, map[string]string{"first_name": "Alice"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/accounts", aliceToken, map[string]string{"first_name": ""}).Code)

	f.loginAccount(t, aliceToken, id)

	rec := f.do(t, http.MethodGet, "/api/accounts/"+id.String(), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, view["connected"])
	assert.Equal(t, "online", view["status"])

	rec = f.do(t, http.MethodGet, "/api/accounts", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]json.RawMessage](t, rec)["accounts"], 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/accounts/"+id.String(), bobToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/accounts/not-a-uuid", aliceToken, nil).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/accounts/"+id.String()+"/logout", aliceToken, nil).Code)
	_, tracked := f.presence.GetStatus(id)
	assert.False(t, tracked)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/accounts/"+id.String(), aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/accounts/"+id.String(), aliceToken, nil).Code)
}

func TestAccountPresenceRoutes(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createAccount(t, aliceToken, "Alice")
	base := "/api/accounts/" + id.String() + "/presence"

	rec := f.do(t, http.MethodGet, base, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusOffline, decode[accountPresenceResponse](t, rec).Status)

	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, base+"/away", aliceToken, map[string]bool{"isEnabled": true}).Code,
		"not logged in")

	f.loginAccount(t, aliceToken, id)
	f.tracker.AddConnection("tab", id)

	rec = f.do(t, http.MethodPost, base+"/busy", aliceToken, map[string]bool{"isEnabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusBusy, decode[accountPresenceResponse](t, rec).Status)

	rec = f.do(t, http.MethodPost, base+"/away", aliceToken, map[string]bool{"isEnabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[accountPresenceResponse](t, rec)
	assert.Equal(t, models.StatusAway, got.Status)
	assert.Equal(t, "Away", got.StatusText)
	assert.Equal(t, 1, got.Connections)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/away", aliceToken, map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, "/api/accounts/"+uuid.NewString()+"/presence/away", aliceToken, map[string]bool{"isEnabled": true}).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, base+"/away", bobToken, map[string]bool{"isEnabled": false}).Code)
}

func TestGlobalPresenceRoutes(t *testing.T) {
	f := newAPIFixture(t)
	a := f.createAccount(t, aliceToken, "Alice")
	b := f.createAccount(t, aliceToken, "Bob")
	f.loginAccount(t, aliceToken, a)
	f.loginAccount(t, aliceToken, b)
	other := f.createAccount(t, bobToken, "Carol")
	f.loginAccount(t, bobToken, other)

	rec := f.do(t, http.MethodPost, "/api/accounts/"+a.String()+"/presence/active", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[presenceSnapshotResponse](t, rec)
	require.NotNil(t, snapshot.ActiveAccountID)
	assert.Equal(t, a, *snapshot.ActiveAccountID)
	assert.Len(t, snapshot.Accounts, 2, "only the caller's accounts")

	statusB, _ := f.presence.GetStatus(b)
	assert.Equal(t, models.StatusBusy, statusB)

	rec = f.do(t, http.MethodPost, "/api/presence/active-account", aliceToken, map[string]interface{}{"accountId": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[presenceSnapshotResponse](t, rec).ActiveAccountID)

	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, "/api/presence/active-account", aliceToken, map[string]interface{}{"accountId": other}).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/presence/browser-close", aliceToken, nil).Code)
	statusA, _ := f.presence.GetStatus(a)
	assert.Equal(t, models.StatusAway, statusA)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/presence/browser-return", aliceToken, nil).Code)
	statusA, _ = f.presence.GetStatus(a)
	assert.Equal(t, models.StatusBusy, statusA, "no active account after clearing the selection")

	rec = f.do(t, http.MethodGet, "/api/presence", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[presenceSnapshotResponse](t, rec).Accounts, 2)
}

func TestPresenceRoutes_OperatorsAreIsolated(t *testing.T) {
	f := newAPIFixture(t)
	a := f.createAccount(t, aliceToken, "Alice")
	f.loginAccount(t, aliceToken, a)
	carol := f.createAccount(t, bobToken, "Carol")
	f.loginAccount(t, bobToken, carol)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/accounts/"+a.String()+"/presence/active", aliceToken, nil).Code)
	statusCarol, _ := f.presence.GetStatus(carol)
	assert.Equal(t, models.StatusOnline, statusCarol, "another operator's selection leaves carol alone")

	rec := f.do(t, http.MethodGet, "/api/presence", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[presenceSnapshotResponse](t, rec)
	assert.Nil(t, snapshot.ActiveAccountID)
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, carol, snapshot.Accounts[0].AccountID)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/presence/browser-close", aliceToken, nil).Code)
	statusA, _ := f.presence.GetStatus(a)
	assert.Equal(t, models.StatusAway, statusA)
	statusCarol, _ = f.presence.GetStatus(carol)
	assert.Equal(t, models.StatusOnline, statusCarol, "browser close only affects the caller's accounts")
}
