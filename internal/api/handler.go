package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
	"github.com/prudhvinik1/numberwatch/internal/services"
	"github.com/prudhvinik1/numberwatch/internal/vault"
)

type Syncer interface {
	Sync(ctx context.Context, accountID uuid.UUID, force bool) services.SyncResult
}

type AccountManager interface {
	Status(ctx context.Context, accountID uuid.UUID) (*services.AccountStatus, error)
	RegisterCredential(ctx context.Context, accountID uuid.UUID, token string) error
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

type ResourceMonitor interface {
	SetMonitoring(ctx context.Context, resourceID uuid.UUID, enabled bool) error
}

type AlertResolver interface {
	Resolve(ctx context.Context, alertID uuid.UUID, actor *string, note string) error
}

type RiskScorer interface {
	Score(ctx context.Context, actor string) (models.RiskScore, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.OperatorClaims, error)
	Revoke(ctx context.Context, sessionID string) error
}

type Handler struct {
	syncer   Syncer
	accounts  AccountManager
	resources ResourceMonitor
	alerts    AlertResolver
	risk      RiskScorer
	auth      Authenticator
	audit     services.AuditRecorder
	logger    *zap.Logger
}

func NewHandler(
	syncer Syncer,
	accounts AccountManager,
	resources ResourceMonitor,
	alerts AlertResolver,
	risk RiskScorer,
	auth Authenticator,
	recorder services.AuditRecorder,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		syncer:    syncer,
		accounts:  accounts,
		resources: resources,
		alerts:    alerts,
		risk:      risk,
		auth:      auth,
		audit:     recorder,
		logger:    logger.Named("api"),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result := h.syncer.Sync(r.Context(), accountID, force)
	writeJSON(w, syncStatusCode(result), result)
}

func syncStatusCode(result services.SyncResult) int {
	if result.Status != services.SyncFailed {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	case services.KindConfiguration, services.KindCredential, services.KindAuthInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	status, err := h.accounts.Status(r.Context(), accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to load account status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type credentialRequest struct {
	Token string `json:"token"`
}

func (h *Handler) RegisterCredential(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var req credentialRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.accounts.RegisterCredential(r.Context(), accountID, req.Token)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrEmptyCredential):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, vault.ErrEncryptionUnavailable):
		writeError(w, http.StatusServiceUnavailable, "credential encryption is not configured")
	default:
		h.internalError(w, "failed to register credential", err)
	}
}

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	err := h.accounts.Deactivate(r.Context(), accountID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		h.internalError(w, "failed to deactivate account", err)
	}
}

type monitoringRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) SetMonitoring(w http.ResponseWriter, r *http.Request) {
	resourceID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return
	}
	var req monitoringRequest
	if err := readBodyJSON(r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
		return
	}

	err := h.resources.SetMonitoring(r.Context(), resourceID, *req.Enabled)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	default:
		h.internalError(w, "failed to set monitoring", err)
	}
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	var req resolveRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.alerts.Resolve(r.Context(), alertID, audit.ActorFromContext(r.Context()), req.Note)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrResolutionNoteRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, repositories.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "failed to resolve alert", err)
	}
}

func (h *Handler) RiskScore(w http.ResponseWriter, r *http.Request) {
	actor := chi.URLParam(r, "actor")
	score, err := h.risk.Score(r.Context(), actor)
	if err != nil {
		h.internalError(w, "failed to score actor", err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := h.auth.Revoke(r.Context(), claims.SessionID); err != nil {
		h.internalError(w, "failed to revoke session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
