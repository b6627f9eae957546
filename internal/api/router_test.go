package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
	"github.com/prudhvinik1/numberwatch/internal/services"
)

func TestRouter_HealthIsPublic(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, env.audit.all())
}

func TestRouter_RejectsMissingAndInvalidTokens(t *testing.T) {
	env := newTestEnv()
	path := "/accounts/" + uuid.NewString() + "/status"

	rec := env.do(t, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, path, "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	records := env.audit.all()
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "auth.reject", rec.action)
		assert.False(t, rec.success)
		assert.Nil(t, rec.actor)
	}
}

func TestRouter_SyncAccount(t *testing.T) {
	env := newTestEnv()
	accountID := uuid.New()
	env.syncer.result = services.SyncResult{AccountID: accountID, Status: services.SyncCompleted, Processed: 2, Created: 1}

	rec := env.do(t, http.MethodPost, "/accounts/"+accountID.String()+"/sync?force=true", validToken, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body services.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Processed)
	assert.True(t, env.syncer.force)
	assert.Equal(t, "ops@example.com", env.syncer.actor, "operator identity reaches the sync")
	assert.Equal(t, "192.0.2.10", env.syncer.ip)

	assert.Empty(t, env.audit.all(), "the sync audits itself")
}

func TestRouter_SyncFailureStatusCodes(t *testing.T) {
	for kind, want := range map[services.ErrorKind]int{
		services.KindRateLimited:   http.StatusTooManyRequests,
		services.KindNotFound:      http.StatusNotFound,
		services.KindCredential:    http.StatusUnprocessableEntity,
		services.KindConfiguration: http.StatusUnprocessableEntity,
		services.KindTransport:     http.StatusBadGateway,
	} {
		t.Run(string(kind), func(t *testing.T) {
			env := newTestEnv()
			env.syncer.result = services.SyncResult{Status: services.SyncFailed, ErrorKind: kind}

			rec := env.do(t, http.MethodPost, "/accounts/"+uuid.NewString()+"/sync", validToken, "")

			assert.Equal(t, want, rec.Code)
		})
	}
}

func TestRouter_InvalidAccountID(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/accounts/not-a-uuid/sync", validToken, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.syncer.calls)
}

func TestRouter_AccountStatus(t *testing.T) {
	env := newTestEnv()
	accountID := uuid.New()
	msg := "partner list_resources: auth_invalid"
	env.accounts.status = &services.AccountStatus{ID: accountID, Name: "Acme", NeedsReauth: true, LastSyncError: &msg}

	rec := env.do(t, http.MethodGet, "/accounts/"+accountID.String()+"/status", validToken, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"needs_reauth":true`)

	env.accounts.err = repositories.ErrNotFound
	rec = env.do(t, http.MethodGet, "/accounts/"+accountID.String()+"/status", validToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RegisterCredential(t *testing.T) {
	env := newTestEnv()
	accountID := uuid.New()

	rec := env.do(t, http.MethodPut, "/accounts/"+accountID.String()+"/credential", validToken, `{"token":"EAAnew"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "EAAnew", env.accounts.token)

	env.accounts.err = services.ErrEmptyCredential
	rec = env.do(t, http.MethodPut, "/accounts/"+accountID.String()+"/credential", validToken, `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/accounts/"+accountID.String()+"/credential", validToken, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SetMonitoring(t *testing.T) {
	env := newTestEnv()
	resourceID := uuid.New()
	path := "/resources/" + resourceID.String() + "/monitoring"

	rec := env.do(t, http.MethodPut, path, validToken, `{"enabled":false}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, resourceID, env.resources.id)
	require.NotNil(t, env.resources.enabled)
	assert.False(t, *env.resources.enabled)

	records := env.audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, "PUT /resources/{id}/monitoring", records[0].action)
	assert.True(t, records[0].success)

	rec = env.do(t, http.MethodPut, path, validToken, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "enabled is required")

	env.resources.err = repositories.ErrNotFound
	rec = env.do(t, http.MethodPut, path, validToken, `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ResolveAlert(t *testing.T) {
	env := newTestEnv()
	alertID := uuid.New()

	rec := env.do(t, http.MethodPost, "/alerts/"+alertID.String()+"/resolve", validToken, `{"note":"number reconnected"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "number reconnected", env.alerts.note)
	require.NotNil(t, env.alerts.actor)
	assert.Equal(t, "ops@example.com", *env.alerts.actor)

	env.alerts.err = repositories.ErrAlreadyResolved
	rec = env.do(t, http.MethodPost, "/alerts/"+alertID.String()+"/resolve", validToken, `{"note":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_RiskScore(t *testing.T) {
	env := newTestEnv()
	env.risk.score = models.RiskScore{ActorID: "suspect", FailedAttempts: 9, Total: 30}

	rec := env.do(t, http.MethodGet, "/audit/risk/suspect", validToken, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var score models.RiskScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Equal(t, 30, score.Total)
}

func TestRouter_Logout(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/auth/logout", validToken, "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "session-1", env.auth.revoked)
}

// Helper functions

const validToken = "valid-token"

type testEnv struct {
	router   http.Handler
	syncer   *fakeSyncer
	accounts  *fakeAccounts
	resources *fakeResources
	alerts    *fakeAlerts
	risk      *fakeRisk
	auth      *fakeAuth
	audit     *fakeAudit
}

func newTestEnv() *testEnv {
	env := &testEnv{
		syncer:    &fakeSyncer{},
		accounts:  &fakeAccounts{},
		resources: &fakeResources{},
		alerts:    &fakeAlerts{},
		risk:      &fakeRisk{},
		auth:      &fakeAuth{},
		audit:     &fakeAudit{},
	}
	handler := NewHandler(env.syncer, env.accounts, env.resources, env.alerts, env.risk, env.auth, env.audit, zap.NewNop())
	env.router = NewRouter(handler)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:51000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type fakeSyncer struct {
	result services.SyncResult
	force  bool
	actor  string
	ip     string
	calls  int
}

func (f *fakeSyncer) Sync(ctx context.Context, accountID uuid.UUID, force bool) services.SyncResult {
	f.calls++
	f.force = force
	if actor := audit.ActorFromContext(ctx); actor != nil {
		f.actor = *actor
	}
	f.ip = audit.ClientIPFromContext(ctx)
	return f.result
}

type fakeAccounts struct {
	status *services.AccountStatus
	token  string
	err    error
}

func (f *fakeAccounts) Status(_ context.Context, _ uuid.UUID) (*services.AccountStatus, error) {
	return f.status, f.err
}

func (f *fakeAccounts) RegisterCredential(_ context.Context, _ uuid.UUID, token string) error {
	if f.err != nil {
		return f.err
	}
	f.token = token
	return nil
}

func (f *fakeAccounts) Deactivate(_ context.Context, _ uuid.UUID) error {
	return f.err
}

type fakeResources struct {
	id      uuid.UUID
	enabled *bool
	err     error
}

func (f *fakeResources) SetMonitoring(_ context.Context, resourceID uuid.UUID, enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.id = resourceID
	f.enabled = &enabled
	return nil
}

type fakeAlerts struct {
	note  string
	actor *string
	err   error
}

func (f *fakeAlerts) Resolve(_ context.Context, _ uuid.UUID, actor *string, note string) error {
	if f.err != nil {
		return f.err
	}
	f.actor = actor
	f.note = note
	return nil
}

type fakeRisk struct {
	score models.RiskScore
}

func (f *fakeRisk) Score(_ context.Context, actor string) (models.RiskScore, error) {
	return f.score, nil
}

type fakeAuth struct {
	revoked string
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*services.OperatorClaims, error) {
	if token != validToken {
		return nil, services.ErrInvalidToken
	}
	return &services.OperatorClaims{OperatorID: "ops@example.com", SessionID: "session-1"}, nil
}

func (f *fakeAuth) Revoke(_ context.Context, sessionID string) error {
	f.revoked = sessionID
	return nil
}

type auditRecord struct {
	actor   *string
	action  string
	success bool
	ip      string
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAudit) Record(_ context.Context, actor *string, action, _ string, success bool, ip string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{actor: actor, action: action, success: success, ip: ip})
}

func (f *fakeAudit) all() []auditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auditRecord(nil), f.records...)
}
