package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/middleware"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/services"
	"go.uber.org/zap"
)

type AccountService interface {
	Create(ctx context.Context, operatorID uuid.UUID, req services.CreateAccountRequest) (*models.Account, error)
	Get(ctx context.Context, operatorID, accountID uuid.UUID) (*models.Account, error)
	View(ctx context.Context, operatorID, accountID uuid.UUID) (*services.AccountView, error)
	List(ctx context.Context, operatorID uuid.UUID) ([]*services.AccountView, error)
	Delete(ctx context.Context, operatorID, accountID uuid.UUID) error
	Login(ctx context.Context, operatorID, accountID uuid.UUID) (*models.Account, error)
	Logout(ctx context.Context, operatorID, accountID uuid.UUID) error
}

type AccountHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

func NewAccountHandler(accounts AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// operatorAndAccount pulls the caller and the {id} path parameter, writing
// the error response itself when either is missing.
func operatorAndAccount(w http.ResponseWriter, r *http.Request) (operatorID, accountID uuid.UUID, ok bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	accountID, ok = accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, uuid.Nil, false
	}
	return claims.OperatorID, accountID, true
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req services.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	account, err := h.accounts.Create(r.Context(), claims.OperatorID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	views, err := h.accounts.List(r.Context(), claims.OperatorID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	operatorID, accountID, ok := operatorAndAccount(w, r)
	if !ok {
		return
	}
	view, err := h.accounts.View(r.Context(), operatorID, accountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	operatorID, accountID, ok := operatorAndAccount(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Delete(r.Context(), operatorID, accountID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	operatorID, accountID, ok := operatorAndAccount(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Login(r.Context(), operatorID, accountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	operatorID, accountID, ok := operatorAndAccount(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Logout(r.Context(), operatorID, accountID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
