package contract

import (
	"context"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
)

// CreditTransactionRepository is append-only: ledger rows are never updated or deleted.
type CreditTransactionRepository interface {
	Create(ctx context.Context, tx *entity.CreditTransaction) error
	CreateBatch(ctx context.Context, txs []*entity.CreditTransaction) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CreditTransaction, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SumByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
