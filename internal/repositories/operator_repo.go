package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/webradegast/internal/models"
)

var ErrNotFound = errors.New("not found")

type PostgresOperatorRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOperatorRepository(pool *pgxpool.Pool) *PostgresOperatorRepository {
	return &PostgresOperatorRepository{pool: pool}
}

func (r *PostgresOperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	query := `INSERT INTO operators (email, password_hash)
	          VALUES ($1, $2)
	          RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, operator.Email, operator.PasswordHash).
		Scan(&operator.ID, &operator.CreatedAt, &operator.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

func (r *PostgresOperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	query := `SELECT id, email, password_hash, created_at, updated_at, deleted_at
	          FROM operators WHERE id = $1 AND deleted_at IS NULL`

	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresOperatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	query := `SELECT id, email, password_hash, created_at, updated_at, deleted_at
	          FROM operators WHERE email = $1 AND deleted_at IS NULL`

	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresOperatorRepository) scanOne(row pgx.Row) (*models.Operator, error) {
	var operator models.Operator
	err := row.Scan(&operator.ID, &operator.Email, &operator.PasswordHash,
		&operator.CreatedAt, &operator.UpdatedAt, &operator.DeletedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &operator, nil
}

func (r *PostgresOperatorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM operators WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete operator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
