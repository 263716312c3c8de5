package model

import (
	"time"

	"github.com/google/uuid"
)

type CreditTransaction struct {
	Id          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Amount      int        `gorm:"not null"`
	Type        string     `gorm:"type:credit_transaction_type;not null;index"`
	Description string     `gorm:"type:text;not null;default:''"`
	RelatedId   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
