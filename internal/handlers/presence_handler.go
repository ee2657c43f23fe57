package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/middleware"
	"github.com/prudhvinik1/webradegast/internal/models"
	"go.uber.org/zap"
)

type PresenceService interface {
	GetStatus(accountID uuid.UUID) (models.PresenceStatus, bool)
	Snapshot(operatorID uuid.UUID) []models.AccountPresence
	ActiveAccount(operatorID uuid.UUID) (uuid.UUID, bool)
	SetActiveAccount(ctx context.Context, operatorID uuid.UUID, accountID *uuid.UUID) bool
	SetAway(ctx context.Context, accountID uuid.UUID, enabled bool) bool
	SetBusy(ctx context.Context, accountID uuid.UUID, enabled bool) bool
	HandleBrowserClose(ctx context.Context, operatorID uuid.UUID)
	HandleBrowserReturn(ctx context.Context, operatorID uuid.UUID)
}

type ConnectionCounter interface {
	GetConnectionCount(accountID uuid.UUID) int
}

type toggleRequest struct {
	IsEnabled *bool `json:"isEnabled" validate:"required"`
}

type activeAccountRequest struct {
	AccountID *uuid.UUID `json:"accountId"`
}

type accountPresenceResponse struct {
	AccountID   uuid.UUID             `json:"accountId"`
	Status      models.PresenceStatus `json:"status"`
	StatusText  string                `json:"statusText"`
	Connections int                   `json:"connections"`
}

type presenceSnapshotResponse struct {
	ActiveAccountID *uuid.UUID               `json:"activeAccountId"`
	Accounts        []models.AccountPresence `json:"accounts"`
}

type PresenceHandler struct {
	presence    PresenceService
	accounts    AccountService
	connections ConnectionCounter
	logger      *zap.Logger
}

func NewPresenceHandler(presence PresenceService, accounts AccountService, connections ConnectionCounter, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, accounts: accounts, connections: connections, logger: logger}
}

// owned resolves the {id} parameter to an account of the caller.
func (h *PresenceHandler) owned(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	operatorID, accountID, ok := operatorAndAccount(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.accounts.Get(r.Context(), operatorID, accountID); err != nil {
		writeServiceError(w, h.logger, err)
		return uuid.Nil, false
	}
	return accountID, true
}

func (h *PresenceHandler) GetAccountPresence(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.owned(w, r)
	if !ok {
		return
	}
	status, _ := h.presence.GetStatus(accountID)
	writeJSON(w, http.StatusOK, accountPresenceResponse{
		AccountID:   accountID,
		Status:      status,
		StatusText:  status.Text(),
		Connections: h.connections.GetConnectionCount(accountID),
	})
}

func (h *PresenceHandler) SetAway(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.presence.SetAway)
}

func (h *PresenceHandler) SetBusy(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.presence.SetBusy)
}

func (h *PresenceHandler) toggle(w http.ResponseWriter, r *http.Request, set func(context.Context, uuid.UUID, bool) bool) {
	accountID, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !set(r.Context(), accountID, *req.IsEnabled) {
		writeError(w, http.StatusNotFound, "account is not logged in")
		return
	}
	h.GetAccountPresence(w, r)
}

func (h *PresenceHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.owned(w, r)
	if !ok {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if !h.presence.SetActiveAccount(r.Context(), claims.OperatorID, &accountID) {
		writeError(w, http.StatusNotFound, "account is not logged in")
		return
	}
	h.Snapshot(w, r)
}

// SetActiveAccount accepts {"accountId": null} to clear the selection.
func (h *PresenceHandler) SetActiveAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req activeAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.AccountID != nil {
		if _, err := h.accounts.Get(r.Context(), claims.OperatorID, *req.AccountID); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
	}
	if !h.presence.SetActiveAccount(r.Context(), claims.OperatorID, req.AccountID) {
		writeError(w, http.StatusNotFound, "account is not logged in")
		return
	}
	h.Snapshot(w, r)
}

// Snapshot lists the presence of the caller's tracked accounts.
func (h *PresenceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	resp := presenceSnapshotResponse{Accounts: h.presence.Snapshot(claims.OperatorID)}
	if active, ok := h.presence.ActiveAccount(claims.OperatorID); ok {
		resp.ActiveAccountID = &active
	}
	writeJSON(w, http.StatusOK, resp)
}

// BrowserClose and BrowserReturn only affect the caller's accounts.
func (h *PresenceHandler) BrowserClose(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	h.presence.HandleBrowserClose(r.Context(), claims.OperatorID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PresenceHandler) BrowserReturn(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	h.presence.HandleBrowserReturn(r.Context(), claims.OperatorID)
	w.WriteHeader(http.StatusNoContent)
}
