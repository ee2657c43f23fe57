package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/grid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/repositories"
	"go.uber.org/zap"
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrInvalidAccount = errors.New("invalid account")
	ErrAccountExists  = errors.New("account already registered")
)

// SessionFactory opens a grid session for an account.
type SessionFactory func(ctx context.Context, account *models.Account) (grid.Session, error)

// LocalSessionFactory opens in-process sessions.
func LocalSessionFactory(ctx context.Context, account *models.Account) (grid.Session, error) {
	return grid.NewLocalSession(account.ID), nil
}

type CreateAccountRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	GridURL     string `json:"grid_url"`
}

// AccountView is an account together with its live presence.
type AccountView struct {
	*models.Account
	Connected   bool `json:"connected"`
	Connections int  `json:"connections"`
}

// AccountService owns the avatar accounts and their grid sessions.
type AccountService struct {
	accountRepo repositories.AccountRepository
	registry    *grid.Registry
	presence    *PresenceService
	tracker     *ConnectionTracker
	openSession SessionFactory
	logger      *zap.Logger
}

func NewAccountService(
	accountRepo repositories.AccountRepository,
	registry *grid.Registry,
	presence *PresenceService,
	tracker *ConnectionTracker,
	openSession SessionFactory,
	logger *zap.Logger,
) *AccountService {
	if openSession == nil {
		openSession = LocalSessionFactory
	}
	return &AccountService{
		accountRepo: accountRepo,
		registry:    registry,
		presence:    presence,
		tracker:     tracker,
		openSession: openSession,
		logger:      logger,
	}
}

func (s *AccountService) Create(ctx context.Context, operatorID uuid.UUID, req CreateAccountRequest) (*models.Account, error) {
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || strings.ContainsAny(first, " \t") || strings.ContainsAny(last, " \t") {
		return nil, ErrInvalidAccount
	}
	if last == "" {
		last = "Resident"
	}

	account := &models.Account{
		OperatorID:  operatorID,
		FirstName:   first,
		LastName:    last,
		DisplayName: strings.TrimSpace(req.DisplayName),
		GridURL:     strings.TrimSpace(req.GridURL),
		Status:      models.StatusOffline,
	}
	err := s.accountRepo.Create(ctx, account)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("avatar", account.FullName()))
	return account, nil
}

// Get returns the account if it belongs to operatorID.
func (s *AccountService) Get(ctx context.Context, operatorID, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account.OperatorID != operatorID {
		return nil, ErrUnknownAccount
	}
	if status, ok := s.presence.GetStatus(accountID); ok {
		account.Status = status
	}
	return account, nil
}

func (s *AccountService) View(ctx context.Context, operatorID, accountID uuid.UUID) (*AccountView, error) {
	account, err := s.Get(ctx, operatorID, accountID)
	if err != nil {
		return nil, err
	}
	return s.view(account), nil
}

func (s *AccountService) List(ctx context.Context, operatorID uuid.UUID) ([]*AccountView, error) {
	accounts, err := s.accountRepo.ListByOperator(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	views := make([]*AccountView, 0, len(accounts))
	for _, account := range accounts {
		if status, ok := s.presence.GetStatus(account.ID); ok {
			account.Status = status
		} else {
			account.Status = models.StatusOffline
		}
		views = append(views, s.view(account))
	}
	return views, nil
}

func (s *AccountService) view(account *models.Account) *AccountView {
	return &AccountView{
		Account:     account,
		Connected:   s.registry.IsConnected(account.ID),
		Connections: s.tracker.GetConnectionCount(account.ID),
	}
}

// Login opens a grid session for the account and starts tracking its
// presence. Logging in an account that is already connected is a no-op.
func (s *AccountService) Login(ctx context.Context, operatorID, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.Get(ctx, operatorID, accountID)
	if err != nil {
		return nil, err
	}
	if s.registry.IsConnected(accountID) {
		return account, nil
	}

	session, err := s.openSession(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid session: %w", err)
	}
	if prev, replaced := s.registry.Add(session); replaced {
		if err := prev.Close(); err != nil {
			s.logger.Warn("failed to close replaced grid session",
				zap.String("account_id", accountID.String()), zap.Error(err))
		}
	}
	s.presence.Track(ctx, operatorID, accountID)

	account.Status, _ = s.presence.GetStatus(accountID)
	s.logger.Info("account logged in", zap.String("account_id", accountID.String()))
	return account, nil
}

// Logout closes the grid session and stops tracking presence. Logging out an
// account without a session is a no-op.
func (s *AccountService) Logout(ctx context.Context, operatorID, accountID uuid.UUID) error {
	if _, err := s.Get(ctx, operatorID, accountID); err != nil {
		return err
	}
	s.disconnect(ctx, accountID)
	return nil
}

func (s *AccountService) Delete(ctx context.Context, operatorID, accountID uuid.UUID) error {
	if _, err := s.Get(ctx, operatorID, accountID); err != nil {
		return err
	}
	s.disconnect(ctx, accountID)

	err := s.accountRepo.Delete(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUnknownAccount
	}
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// Shutdown closes every grid session, used when the process stops. Animation
// calls already in flight finish first.
func (s *AccountService) Shutdown(ctx context.Context) {
	s.presence.WaitAnimations()
	for _, id := range s.registry.IDs() {
		s.disconnect(ctx, id)
	}
}

func (s *AccountService) disconnect(ctx context.Context, accountID uuid.UUID) {
	s.presence.Untrack(ctx, accountID)
	if session, ok := s.registry.Remove(accountID); ok {
		if err := session.Close(); err != nil {
			s.logger.Warn("failed to close grid session",
				zap.String("account_id", accountID.String()), zap.Error(err))
		}
		s.logger.Info("account logged out", zap.String("account_id", accountID.String()))
	}
}
