package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

type ByModelID struct {
	ModelID string
}

func (s ByModelID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("model_id = ?", s.ModelID)
}

type ByGenerationID struct {
	GenerationID uuid.UUID
}

func (s ByGenerationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("generation_id = ?", s.GenerationID)
}

type ByArtifactKind struct {
	Kind string
}

func (s ByArtifactKind) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kind = ?", s.Kind)
}

// WithImages preloads the artifacts of each generation.
type WithImages struct{}

func (s WithImages) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload("Images", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC")
	})
}
