package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type staticCatalog map[string]provider.ModelSpec

func (c staticCatalog) Model(id string) (provider.ModelSpec, bool) {
	spec, ok := c[id]
	return spec, ok
}

func testCatalog() staticCatalog {
	return staticCatalog{
		"cheap":  {ID: "cheap", Credits: 1, MaxBatchSize: 1},
		"img-10": {ID: "img-10", Credits: 10, MaxBatchSize: 4},
	}
}

func newCreditFixture(t *testing.T) (*creditService, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewCreditService(&fakeFactory{store: store}, testCatalog(), nil, logger.NewNopLogger(), CreditOptions{}).(*creditService)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

// seedUser creates a user whose ledger already explains the balance.
func seedUser(store *memStore, tier entity.PlanTier, balance int, lastUpdate time.Time) uuid.UUID {
	id := uuid.New()
	store.addUser(&entity.User{
		Id:               id,
		Email:            id.String() + "@example.com",
		Role:             entity.UserRoleUser,
		Status:           entity.UserStatusActive,
		PlanTier:         tier,
		TotalCredits:     balance,
		LastCreditUpdate: lastUpdate,
		CreatedAt:        lastUpdate,
	})
	if balance != 0 {
		store.txs = append(store.txs, &entity.CreditTransaction{
			Id:        uuid.New(),
			UserId:    id,
			Amount:    balance,
			Type:      entity.CreditTransactionAdminAdd,
			CreatedAt: lastUpdate,
		})
	}
	return id
}

func TestCreditService_CheckCredits(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 25, testNow)

	tests := []struct {
		name     string
		userID   uuid.UUID
		model    string
		quantity int
		code     apperror.Code
		required int
	}{
		{name: "enough for batch", userID: userID, model: "img-10", quantity: 2, required: 20},
		{name: "batch too expensive", userID: userID, model: "img-10", quantity: 3, code: apperror.CodeInsufficientCredits},
		{name: "zero quantity counts as one", userID: userID, model: "img-10", quantity: 0, required: 10},
		{name: "unknown model", userID: userID, model: "nope", quantity: 1, code: apperror.CodeValidation},
		{name: "unknown user", userID: uuid.New(), model: "cheap", quantity: 1, code: apperror.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := svc.CheckCredits(context.Background(), tt.userID, tt.model, tt.quantity)
			if tt.code != "" {
				assert.True(t, apperror.Is(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.required, check.RequiredCredits)
			assert.Equal(t, 25, check.User.TotalCredits)
		})
	}

	assert.Equal(t, 25, store.user(userID).TotalCredits, "check is read only")
}

func TestCreditService_InsufficientCreditsCarriesCounts(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 0, testNow)

	_, err := svc.CheckAndDeductCredits(context.Background(), userID, "cheap", 1, nil)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientCredits, appErr.Code)
	assert.Equal(t, 402, appErr.HTTPStatus)
	assert.Equal(t, 1, appErr.Details["required"])
	assert.Equal(t, 0, appErr.Details["available"])
	assert.Len(t, store.ledger(userID), 0)
}

func TestCreditService_CheckAndDeductCredits(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierPremium, 50, testNow)
	generationID := uuid.New()

	charge, err := svc.CheckAndDeductCredits(context.Background(), userID, "img-10", 2, &generationID)
	require.NoError(t, err)

	assert.Equal(t, 20, charge.CreditsUsed)
	assert.Equal(t, 30, charge.User.TotalCredits)
	assert.Equal(t, 30, store.user(userID).TotalCredits)

	ledger := store.ledger(userID)
	require.Len(t, ledger, 2)
	row := ledger[1]
	assert.Equal(t, -20, row.Amount)
	assert.Equal(t, entity.CreditTransactionGeneration, row.Type)
	assert.Equal(t, "AI generation: img-10", row.Description)
	require.NotNil(t, row.RelatedId)
	assert.Equal(t, generationID, *row.RelatedId)
	assert.Equal(t, store.user(userID).TotalCredits, store.ledgerSum(userID))
}

func TestCreditService_ConcurrentDeductionsNeverOverspend(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 95, testNow)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckAndDeductCredits(context.Background(), userID, "img-10", 1, nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.Is(err, apperror.CodeInsufficientCredits):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(9), succeeded.Load())
	assert.Equal(t, int32(11), rejected.Load())
	assert.Equal(t, 5, store.user(userID).TotalCredits)
	assert.Equal(t, 5, store.ledgerSum(userID))
}

func TestCreditService_RefundCredits(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 40, testNow)
	generationID := uuid.New()

	charge, err := svc.CheckAndDeductCredits(context.Background(), userID, "img-10", 1, &generationID)
	require.NoError(t, err)

	refunded, err := svc.RefundCredits(context.Background(), userID, charge.CreditsUsed, "", &generationID)
	require.NoError(t, err)
	assert.True(t, refunded)

	again, err := svc.RefundCredits(context.Background(), userID, charge.CreditsUsed, "", &generationID)
	require.NoError(t, err)
	assert.False(t, again, "second refund for the same generation is ignored")

	assert.Equal(t, 40, store.user(userID).TotalCredits)
	var refunds []entity.CreditTransaction
	for _, tx := range store.ledger(userID) {
		if tx.Type == entity.CreditTransactionRefund {
			refunds = append(refunds, tx)
		}
	}
	require.Len(t, refunds, 1)
	assert.Equal(t, 10, refunds[0].Amount)
	assert.Equal(t, DefaultRefundReason, refunds[0].Description)
	assert.Equal(t, store.user(userID).TotalCredits, store.ledgerSum(userID))
}

func TestCreditService_RefundCredits_Validation(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 0, testNow)

	_, err := svc.RefundCredits(context.Background(), userID, 0, "", nil)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.RefundCredits(context.Background(), uuid.New(), 5, "", nil)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestCreditService_ResetStaleFreeTier(t *testing.T) {
	svc, store := newCreditFixture(t)
	stale := seedUser(store, entity.PlanTierFree, 250, testNow.Add(-25*time.Hour))
	staleLow := seedUser(store, entity.PlanTierFree, 3, testNow.Add(-48*time.Hour))
	fresh := seedUser(store, entity.PlanTierFree, 7, testNow.Add(-2*time.Hour))
	premium := seedUser(store, entity.PlanTierPremium, 500, testNow.Add(-72*time.Hour))

	n, err := svc.ResetStaleFreeTier(context.Background(), "daily")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 100, store.user(stale).TotalCredits, "reset, not additive")
	assert.Equal(t, 100, store.user(staleLow).TotalCredits)
	assert.Equal(t, 7, store.user(fresh).TotalCredits)
	assert.Equal(t, 500, store.user(premium).TotalCredits)
	assert.Equal(t, testNow, store.user(stale).LastCreditUpdate)

	for _, id := range []uuid.UUID{stale, staleLow, fresh, premium} {
		assert.Equal(t, store.user(id).TotalCredits, store.ledgerSum(id), "ledger matches balance")
	}
	daily := store.ledger(stale)[1]
	assert.Equal(t, entity.CreditTransactionDaily, daily.Type)
	assert.Equal(t, -150, daily.Amount)

	// A second trigger right after (the sweep) finds nothing to do.
	n, err = svc.ResetStaleFreeTier(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.ledger(stale), 2)
}

func TestCreditService_ClaimDaily(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 12, testNow.Add(-30*time.Hour))
	premium := seedUser(store, entity.PlanTierPremium, 12, testNow.Add(-30*time.Hour))

	res, err := svc.ClaimDaily(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 12, res.PreviousBalance)
	assert.Equal(t, 100, res.TotalCredits)
	assert.Equal(t, testNow.Add(24*time.Hour), res.NextResetAt)

	res, err = svc.ClaimDaily(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, res.Reset)
	assert.Equal(t, 100, res.TotalCredits)

	_, err = svc.ClaimDaily(context.Background(), premium)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	assert.Equal(t, 12, store.user(premium).TotalCredits)
}

func TestCreditService_HistoryAndBalance(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierFree, 100, testNow.Add(-time.Hour))

	for i := 0; i < 3; i++ {
		svc.now = func() time.Time { return testNow.Add(time.Duration(i+1) * time.Minute) }
		_, err := svc.CheckAndDeductCredits(context.Background(), userID, "img-10", 1, nil)
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(context.Background(), userID, &dto.CreditHistoryRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), history.Total)
	require.Len(t, history.Transactions, 2)
	assert.Equal(t, testNow.Add(3*time.Minute), history.Transactions[0].CreatedAt, "newest first")
	assert.Equal(t, -10, history.Transactions[0].Amount)
	assert.Equal(t, "GENERATION", history.Transactions[0].Type)

	defaults, err := svc.GetHistory(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, defaults.Limit)
	assert.Len(t, defaults.Transactions, 4)

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 70, balance.TotalCredits)
	require.NotNil(t, balance.NextResetAt)
	assert.Equal(t, testNow.Add(23*time.Hour), *balance.NextResetAt)
}

func TestCreditService_AddCreditsAndReconcile(t *testing.T) {
	svc, store := newCreditFixture(t)
	userID := seedUser(store, entity.PlanTierPremium, 10, testNow)

	balance, err := svc.AddCredits(context.Background(), userID, &dto.AddCreditsRequest{Amount: 15})
	require.NoError(t, err)
	assert.Equal(t, 25, balance.TotalCredits)
	assert.Nil(t, balance.NextResetAt)

	_, err = svc.AddCredits(context.Background(), userID, &dto.AddCreditsRequest{Amount: -1})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	rec, err := svc.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 25, rec.LedgerBalance)
	assert.Equal(t, int64(2), rec.Transactions)

	// Simulate a write that bypassed the ledger.
	u := store.user(userID)
	u.TotalCredits = 40
	store.addUser(&u)

	rec, err = svc.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.Equal(t, 15, rec.Drift)
	assert.Equal(t, 25, rec.LedgerBalance)
}
