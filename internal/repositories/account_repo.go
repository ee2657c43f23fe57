package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/webradegast/internal/models"
)

// ErrDuplicate is returned when an operator registers the same avatar twice.
var ErrDuplicate = errors.New("already exists")

const accountColumns = `id, operator_id, first_name, last_name, display_name, grid_url,
	                 status, created_at, updated_at, deleted_at`

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (operator_id, first_name, last_name, display_name, grid_url, status)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, status, created_at, updated_at`

	if account.Status == "" {
		account.Status = models.StatusOffline
	}

	err := r.pool.QueryRow(ctx, query,
		account.OperatorID,
		account.FirstName,
		account.LastName,
		account.DisplayName,
		account.GridURL,
		account.Status,
	).Scan(&account.ID, &account.Status, &account.CreatedAt, &account.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
	          FROM accounts
	          WHERE id = $1 AND deleted_at IS NULL`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListByOperator(ctx context.Context, operatorID uuid.UUID) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
	          FROM accounts
	          WHERE operator_id = $1 AND deleted_at IS NULL
	          ORDER BY first_name ASC, last_name ASC`

	rows, err := r.pool.Query(ctx, query, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateStatus mirrors the displayed presence into the accounts table.
func (r *PostgresAccountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW()
	          WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetStatuses marks every account offline. Grid sessions do not survive a
// restart, so stored statuses are stale at boot.
func (r *PostgresAccountRepository) ResetStatuses(ctx context.Context) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW()
	          WHERE status <> $1 AND deleted_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, models.StatusOffline); err != nil {
		return fmt.Errorf("failed to reset account statuses: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.OperatorID,
		&account.FirstName,
		&account.LastName,
		&account.DisplayName,
		&account.GridURL,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
