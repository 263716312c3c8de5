package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreditBalanceResponse struct {
	UserId           uuid.UUID `json:"user_id"`
	TotalCredits     int       `json:"total_credits"`
	PlanTier         string    `json:"plan_tier"`
	LastCreditUpdate time.Time `json:"last_credit_update"`
	// Only set for tiers that receive the daily allotment.
	NextResetAt *time.Time `json:"next_reset_at,omitempty"`
}

type CreditTransactionResponse struct {
	Id          uuid.UUID  `json:"id"`
	UserId      uuid.UUID  `json:"user_id"`
	Amount      int        `json:"amount"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	RelatedId   *uuid.UUID `json:"related_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CreditHistoryRequest struct {
	Limit  int `query:"limit" validate:"gte=0,lte=200"`
	Offset int `query:"offset" validate:"gte=0"`
}

type CreditHistoryResponse struct {
	Transactions []CreditTransactionResponse `json:"transactions"`
	Total        int64                       `json:"total"`
	Limit        int                         `json:"limit"`
	Offset       int                         `json:"offset"`
}

type AddCreditsRequest struct {
	Amount      int    `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

type ClaimDailyResponse struct {
	Reset           bool      `json:"reset"`
	PreviousBalance int       `json:"previous_balance"`
	TotalCredits    int       `json:"total_credits"`
	NextResetAt     time.Time `json:"next_reset_at"`
}

type ReconcileResponse struct {
	UserId        uuid.UUID `json:"user_id"`
	CachedBalance int       `json:"cached_balance"`
	LedgerBalance int       `json:"ledger_balance"`
	Drift         int       `json:"drift"`
	Transactions  int64     `json:"transactions"`
	Consistent    bool      `json:"consistent"`
}

type CronInfoResponse struct {
	Enabled   bool       `json:"enabled"`
	DailySpec string     `json:"daily_spec"`
	SweepSpec string     `json:"sweep_spec"`
	NextDaily *time.Time `json:"next_daily,omitempty"`
	NextSweep *time.Time `json:"next_sweep,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	Timezone  string     `json:"timezone"`
}

type SchedulerRunResponse struct {
	UsersReset             int       `json:"users_reset"`
	StaleGenerationsFailed int       `json:"stale_generations_failed"`
	RanAt                  time.Time `json:"ran_at"`
}
