package contract

import (
	"context"
	"time"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
)

// BalanceResetCriteria selects the rows a daily reset may touch.
// UserID narrows the reset to one user; nil means every eligible user.
type BalanceResetCriteria struct {
	UserID    *uuid.UUID
	PlanTier  string
	Allotment int
	Cutoff    time.Time
	Now       time.Time
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// AdjustBalance adds delta to total_credits. It returns false, without writing,
	// when the result would be negative.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error)

	// ResetStaleBalances sets every matching balance to the allotment in a single
	// statement whose WHERE clause carries the staleness predicate.
	ResetStaleBalances(ctx context.Context, criteria BalanceResetCriteria) ([]entity.BalanceReset, error)
}
