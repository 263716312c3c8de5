package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string
type UserStatus string
type PlanTier string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"

	PlanTierFree    PlanTier = "free"
	PlanTierPremium PlanTier = "premium"
)

type User struct {
	Id       uuid.UUID
	Email    string
	FullName string
	Role     UserRole
	Status   UserStatus
	PlanTier PlanTier

	// TotalCredits is a cache of the ledger sum. Only the credit service writes it.
	TotalCredits     int
	LastCreditUpdate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceReset is one row touched by a daily reset.
type BalanceReset struct {
	UserId          uuid.UUID
	PreviousBalance int
	NewBalance      int
}
