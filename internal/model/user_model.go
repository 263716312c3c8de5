package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email            string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName         string         `gorm:"type:varchar(255);not null"`
	Role             string         `gorm:"type:varchar(50);not null;default:'user'"`
	Status           string         `gorm:"type:varchar(50);not null;default:'pending'"`
	PlanTier         string         `gorm:"type:varchar(20);not null;default:'free';index"`
	TotalCredits     int            `gorm:"not null;default:0;check:total_credits >= 0"`
	LastCreditUpdate time.Time      `gorm:"not null;default:now();index"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
