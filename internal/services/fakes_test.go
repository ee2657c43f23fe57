package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/repositories"
)

type memoryOperatorRepo struct {
	mu        sync.Mutex
	operators map[uuid.UUID]*models.Operator
}

func newMemoryOperatorRepo() *memoryOperatorRepo {
	return &memoryOperatorRepo{operators: make(map[uuid.UUID]*models.Operator)}
}

func (r *memoryOperatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	operator.ID = uuid.New()
	operator.CreatedAt = time.Now()
	operator.UpdatedAt = operator.CreatedAt
	copied := *operator
	r.operators[operator.ID] = &copied
	return nil
}

func (r *memoryOperatorRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.operators[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *op
	return &copied, nil
}

func (r *memoryOperatorRepo) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.operators {
		if op.Email == email {
			copied := *op
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memoryOperatorRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operators[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.operators, id)
	return nil
}

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *memorySessionRepo) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *memorySessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memorySessionRepo) ListByOperatorID(ctx context.Context, operatorID uuid.UUID) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, s := range r.sessions {
		if s.OperatorID == operatorID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memorySessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memorySessionRepo) DeleteAllForOperator(ctx context.Context, operatorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.OperatorID == operatorID {
			delete(r.sessions, id)
		}
	}
	return nil
}

type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[uuid.UUID]*models.Account)}
}

func (r *memoryAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.OperatorID == account.OperatorID && a.FirstName == account.FirstName && a.LastName == account.LastName {
			return repositories.ErrDuplicate
		}
	}
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *memoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryAccountRepo) ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		if a.OperatorID == operatorID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out, nil
}

func (r *memoryAccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *memoryAccountRepo) ResetStatuses(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		a.Status = models.StatusOffline
	}
	return nil
}

func (r *memoryAccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

type memoryPresenceRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]models.StatusChange
}

func newMemoryPresenceRepo() *memoryPresenceRepo {
	return &memoryPresenceRepo{entries: make(map[uuid.UUID]models.StatusChange)}
}

func (r *memoryPresenceRepo) SetPresence(ctx context.Context, change models.StatusChange, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[change.AccountID] = change
	return nil
}

func (r *memoryPresenceRepo) GetPresence(ctx context.Context, accountID uuid.UUID) (*models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.entries[accountID]
	if !ok {
		return &models.StatusChange{AccountID: accountID, Status: models.StatusOffline}, nil
	}
	return &c, nil
}

func (r *memoryPresenceRepo) DeletePresence(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, accountID)
	return nil
}

func (r *memoryPresenceRepo) GetBulkPresence(ctx context.Context, accountIDs []uuid.UUID) (map[uuid.UUID]models.StatusChange, error) {
	out := make(map[uuid.UUID]models.StatusChange, len(accountIDs))
	for _, id := range accountIDs {
		c, _ := r.GetPresence(ctx, id)
		out[id] = *c
	}
	return out, nil
}
