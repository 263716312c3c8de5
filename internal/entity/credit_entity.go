package entity

import (
	"time"

	"github.com/google/uuid"
)

type CreditTransactionType string

const (
	CreditTransactionGeneration CreditTransactionType = "GENERATION"
	CreditTransactionRefund     CreditTransactionType = "REFUND"
	CreditTransactionAdminAdd   CreditTransactionType = "ADMIN_ADD"
	CreditTransactionDaily      CreditTransactionType = "DAILY"
)

// CreditTransaction is an append-only ledger row. Amount is signed.
type CreditTransaction struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	Amount      int
	Type        CreditTransactionType
	Description string
	RelatedId   *uuid.UUID
	CreatedAt   time.Time
}

type LedgerReconciliation struct {
	UserId        uuid.UUID
	CachedBalance int
	LedgerBalance int
	Drift         int
	Transactions  int64
}
