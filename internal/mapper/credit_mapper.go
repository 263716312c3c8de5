package mapper

import (
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/model"
)

type CreditTransactionMapper struct{}

func NewCreditTransactionMapper() *CreditTransactionMapper {
	return &CreditTransactionMapper{}
}

func (m *CreditTransactionMapper) ToEntity(t *model.CreditTransaction) *entity.CreditTransaction {
	if t == nil {
		return nil
	}
	return &entity.CreditTransaction{
		Id:          t.Id,
		UserId:      t.UserId,
		Amount:      t.Amount,
		Type:        entity.CreditTransactionType(t.Type),
		Description: t.Description,
		RelatedId:   t.RelatedId,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *CreditTransactionMapper) ToModel(t *entity.CreditTransaction) *model.CreditTransaction {
	if t == nil {
		return nil
	}
	return &model.CreditTransaction{
		Id:          t.Id,
		UserId:      t.UserId,
		Amount:      t.Amount,
		Type:        string(t.Type),
		Description: t.Description,
		RelatedId:   t.RelatedId,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *CreditTransactionMapper) ToEntities(rows []*model.CreditTransaction) []*entity.CreditTransaction {
	entities := make([]*entity.CreditTransaction, len(rows))
	for i, t := range rows {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
