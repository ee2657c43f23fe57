package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
)

type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
	GetByEmail(ctx context.Context, email string) (*models.Operator, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*models.Account, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error
	ResetStatuses(ctx context.Context) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByOperatorID(ctx context.Context, operatorID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForOperator(ctx context.Context, operatorID uuid.UUID) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, change models.StatusChange, ttl time.Duration) error
	GetPresence(ctx context.Context, accountID uuid.UUID) (*models.StatusChange, error)
	DeletePresence(ctx context.Context, accountID uuid.UUID) error
	GetBulkPresence(ctx context.Context, accountIDs []uuid.UUID) (map[uuid.UUID]models.StatusChange, error)
}
