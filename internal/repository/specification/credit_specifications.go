package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByTransactionType struct {
	Type string
}

func (s ByTransactionType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("type = ?", s.Type)
}

type ByRelatedID struct {
	RelatedID uuid.UUID
}

func (s ByRelatedID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("related_id = ?", s.RelatedID)
}
