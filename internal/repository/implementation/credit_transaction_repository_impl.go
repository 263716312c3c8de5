package implementation

import (
	"context"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/mapper"
	"ai-mediagen-be/internal/model"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditTransactionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CreditTransactionMapper
}

func NewCreditTransactionRepository(db *gorm.DB) contract.CreditTransactionRepository {
	return &CreditTransactionRepositoryImpl{
		db:     db,
		mapper: mapper.NewCreditTransactionMapper(),
	}
}

func (r *CreditTransactionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CreditTransactionRepositoryImpl) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	m := r.mapper.ToModel(tx)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*tx = *r.mapper.ToEntity(m)
	return nil
}

func (r *CreditTransactionRepositoryImpl) CreateBatch(ctx context.Context, txs []*entity.CreditTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	models := make([]*model.CreditTransaction, len(txs))
	for i, t := range txs {
		models[i] = r.mapper.ToModel(t)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, 200).Error; err != nil {
		return err
	}
	for i, m := range models {
		*txs[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *CreditTransactionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CreditTransaction, error) {
	var rows []*model.CreditTransaction
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows), nil
}

func (r *CreditTransactionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CreditTransaction{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CreditTransactionRepositoryImpl) SumByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}
