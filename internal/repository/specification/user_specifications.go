package specification

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
)

type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}

type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByPlanTier struct {
	Tier string
}

func (s ByPlanTier) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("plan_tier = ?", s.Tier)
}

// CreditStaleBefore matches users whose balance was last refreshed before Cutoff.
type CreditStaleBefore struct {
	Cutoff time.Time
}

func (s CreditStaleBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_credit_update < ?", s.Cutoff)
}
