package unitofwork

import (
	"context"

	"ai-mediagen-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	CreditTransactionRepository() contract.CreditTransactionRepository
	GenerationRepository() contract.GenerationRepository
	ImageRepository() contract.ImageRepository
}
