package repository

import (
	"context"
	"time"

	"github.com/chang-tasks/chang-go/internal/admin/domain"
)

// OperatorRepository is the admin API's persistence seam, kept apart from
// store.TaskStore so the admin package never needs to import task.Task to
// authenticate someone.
type OperatorRepository interface {
	FindOrCreate(ctx context.Context, email string) (*domain.Operator, error)
	FindByID(ctx context.Context, id string) (*domain.Operator, error)
	CreateMagicToken(ctx context.Context, operatorID, tokenHash string, expiresAt time.Time) error
	ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error)
}
