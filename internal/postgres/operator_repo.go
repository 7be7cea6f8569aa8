package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chang-tasks/chang-go/internal/admin/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperatorRepository persists admin.domain.Operator and its magic sign-in
// tokens. Schema:
//
//	CREATE TABLE operators (
//	    id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
//	    email      text NOT NULL UNIQUE,
//	    created_at timestamptz NOT NULL DEFAULT now(),
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE operator_magic_tokens (
//	    id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
//	    operator_id uuid NOT NULL REFERENCES operators(id),
//	    token_hash  text NOT NULL,
//	    expires_at  timestamptz NOT NULL,
//	    used_at     timestamptz,
//	    created_at  timestamptz NOT NULL DEFAULT now()
//	);
type OperatorRepository struct {
	pool *pgxpool.Pool
}

func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

func (r *OperatorRepository) FindOrCreate(ctx context.Context, email string) (*domain.Operator, error) {
	query := `
		INSERT INTO operators (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id, email, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query, email)
	return scanOperator(row)
}

func (r *OperatorRepository) FindByID(ctx context.Context, id string) (*domain.Operator, error) {
	query := `SELECT id, email, created_at, updated_at FROM operators WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanOperator(row)
}

func (r *OperatorRepository) CreateMagicToken(ctx context.Context, operatorID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operator_magic_tokens (operator_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		operatorID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create magic token: %w", err)
	}
	return nil
}

// ClaimMagicToken atomically marks the token used and returns it. Returns
// domain.ErrTokenInvalid if the token does not exist, is already used, or
// has expired.
func (r *OperatorRepository) ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	query := `
		UPDATE operator_magic_tokens
		SET used_at = NOW()
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND expires_at > NOW()
		RETURNING id, operator_id, token_hash, expires_at, used_at, created_at`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	return scanMagicToken(row)
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var o domain.Operator
	err := row.Scan(&o.ID, &o.Email, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	return &o, nil
}

func scanMagicToken(row pgx.Row) (*domain.MagicToken, error) {
	var t domain.MagicToken
	err := row.Scan(&t.ID, &t.OperatorID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("scan magic token: %w", err)
	}
	return &t, nil
}
