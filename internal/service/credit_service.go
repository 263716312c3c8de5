package service

import (
	"context"
	"fmt"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/events"
	"ai-mediagen-be/pkg/metrics"
	"ai-mediagen-be/pkg/provider"

	"github.com/google/uuid"
)

const (
	DefaultDailyAllotment = 100
	DefaultHistoryLimit   = 50
	DefaultRefundReason   = "Generation failed"

	dailyResetWindow = 24 * time.Hour
)

// ModelCatalog is the read side of the provider registry the ledger prices against.
type ModelCatalog interface {
	Model(modelID string) (provider.ModelSpec, bool)
}

// CreditCheck is the outcome of a successful balance check.
type CreditCheck struct {
	User            *entity.User
	RequiredCredits int
}

// CreditCharge is the outcome of a committed deduction.
type CreditCharge struct {
	User        *entity.User
	CreditsUsed int
}

// CreditRefund is a refund written inside a transaction, announced after it commits.
type CreditRefund struct {
	UserId       uuid.UUID
	Amount       int
	Reason       string
	GenerationId *uuid.UUID
	Balance      int
}

type ICreditService interface {
	CheckCredits(ctx context.Context, userId uuid.UUID, modelId string, quantity int) (*CreditCheck, error)
	CheckAndDeductCredits(ctx context.Context, userId uuid.UUID, modelId string, quantity int, generationId *uuid.UUID) (*CreditCharge, error)
	RefundCredits(ctx context.Context, userId uuid.UUID, amount int, reason string, generationId *uuid.UUID) (bool, error)
	RefundInTx(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, amount int, reason string, generationId *uuid.UUID) (*CreditRefund, error)
	AnnounceRefund(ctx context.Context, refund *CreditRefund)

	GetBalance(ctx context.Context, userId uuid.UUID) (*dto.CreditBalanceResponse, error)
	GetHistory(ctx context.Context, userId uuid.UUID, req *dto.CreditHistoryRequest) (*dto.CreditHistoryResponse, error)
	AddCredits(ctx context.Context, userId uuid.UUID, req *dto.AddCreditsRequest) (*dto.CreditBalanceResponse, error)
	ClaimDaily(ctx context.Context, userId uuid.UUID) (*dto.ClaimDailyResponse, error)
	ResetStaleFreeTier(ctx context.Context, trigger string) (int, error)
	Reconcile(ctx context.Context, userId uuid.UUID) (*dto.ReconcileResponse, error)
}

type CreditOptions struct {
	DailyAllotment int
	HistoryLimit   int
}

type creditService struct {
	uowFactory unitofwork.RepositoryFactory
	catalog    ModelCatalog
	publisher  events.Publisher
	logger     logger.ILogger
	opts       CreditOptions
	now        func() time.Time
}

func NewCreditService(
	uowFactory unitofwork.RepositoryFactory,
	catalog ModelCatalog,
	publisher events.Publisher,
	log logger.ILogger,
	opts CreditOptions,
) ICreditService {
	if opts.DailyAllotment <= 0 {
		opts.DailyAllotment = DefaultDailyAllotment
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &creditService{
		uowFactory: uowFactory,
		catalog:    catalog,
		publisher:  publisher,
		logger:     log,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *creditService) cost(modelId string, quantity int) (int, error) {
	spec, ok := s.catalog.Model(modelId)
	if !ok {
		return 0, apperror.Validation(fmt.Sprintf("Unknown model: %s", modelId))
	}
	return spec.Cost(quantity), nil
}

func (s *creditService) CheckCredits(ctx context.Context, userId uuid.UUID, modelId string, quantity int) (*CreditCheck, error) {
	required, err := s.cost(modelId, quantity)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}

	if user.TotalCredits < required {
		metrics.InsufficientCreditsTotal.WithLabelValues(modelId).Inc()
		return nil, apperror.InsufficientCredits(required, user.TotalCredits)
	}

	return &CreditCheck{User: user, RequiredCredits: required}, nil
}

// CheckAndDeductCredits charges the user before any provider call. The pre-flight
// check rejects obvious shortfalls without a lock; the authoritative check runs
// again on the locked row.
func (s *creditService) CheckAndDeductCredits(ctx context.Context, userId uuid.UUID, modelId string, quantity int, generationId *uuid.UUID) (*CreditCharge, error) {
	check, err := s.CheckCredits(ctx, userId, modelId, quantity)
	if err != nil {
		return nil, err
	}
	cost := check.RequiredCredits

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId}, specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}
	if user.TotalCredits < cost {
		metrics.InsufficientCreditsTotal.WithLabelValues(modelId).Inc()
		return nil, apperror.InsufficientCredits(cost, user.TotalCredits)
	}

	applied, err := uow.UserRepository().AdjustBalance(ctx, userId, -cost)
	if err != nil {
		return nil, err
	}
	if !applied {
		metrics.InsufficientCreditsTotal.WithLabelValues(modelId).Inc()
		return nil, apperror.InsufficientCredits(cost, user.TotalCredits)
	}

	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:          uuid.New(),
		UserId:      userId,
		Amount:      -cost,
		Type:        entity.CreditTransactionGeneration,
		Description: fmt.Sprintf("AI generation: %s", modelId),
		RelatedId:   generationId,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	user.TotalCredits -= cost
	metrics.CreditsDeductedTotal.WithLabelValues(modelId).Add(float64(cost))

	return &CreditCharge{User: user, CreditsUsed: cost}, nil
}

// RefundCredits returns credits to the user. With a generation id the refund happens
// at most once; the boolean is false when an earlier refund already covered it.
func (s *creditService) RefundCredits(ctx context.Context, userId uuid.UUID, amount int, reason string, generationId *uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, err
	}
	defer uow.Rollback()

	refund, err := s.RefundInTx(ctx, uow, userId, amount, reason, generationId)
	if err != nil || refund == nil {
		return false, err
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}

	s.AnnounceRefund(ctx, refund)
	return true, nil
}

// RefundInTx writes the refund inside a transaction the caller already began, so it
// commits or rolls back together with the caller's own writes. A nil refund means a
// previous refund already covered the generation.
func (s *creditService) RefundInTx(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, amount int, reason string, generationId *uuid.UUID) (*CreditRefund, error) {
	if amount <= 0 {
		return nil, apperror.Validation("Refund amount must be positive")
	}
	if reason == "" {
		reason = DefaultRefundReason
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId}, specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}

	if generationId != nil {
		previous, err := uow.CreditTransactionRepository().Count(ctx,
			specification.UserOwnedBy{UserID: userId},
			specification.ByRelatedID{RelatedID: *generationId},
			specification.ByTransactionType{Type: string(entity.CreditTransactionRefund)},
		)
		if err != nil {
			return nil, err
		}
		if previous > 0 {
			s.logger.Warn("CREDITS", "Refund already recorded for generation", map[string]interface{}{
				"user_id":       userId,
				"generation_id": generationId,
			})
			return nil, nil
		}
	}

	if _, err := uow.UserRepository().AdjustBalance(ctx, userId, amount); err != nil {
		return nil, err
	}
	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:          uuid.New(),
		UserId:      userId,
		Amount:      amount,
		Type:        entity.CreditTransactionRefund,
		Description: reason,
		RelatedId:   generationId,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, err
	}

	return &CreditRefund{
		UserId:       userId,
		Amount:       amount,
		Reason:       reason,
		GenerationId: generationId,
		Balance:      user.TotalCredits + amount,
	}, nil
}

// AnnounceRefund records metrics and publishes CREDITS_REFUNDED for a committed refund.
func (s *creditService) AnnounceRefund(ctx context.Context, refund *CreditRefund) {
	if refund == nil {
		return
	}
	metrics.CreditsRefundedTotal.Add(float64(refund.Amount))
	s.logger.Info("CREDITS", "Credits refunded", map[string]interface{}{
		"user_id":       refund.UserId,
		"amount":        refund.Amount,
		"reason":        refund.Reason,
		"generation_id": refund.GenerationId,
	})

	data := map[string]interface{}{
		"user_id": refund.UserId.String(),
		"amount":  refund.Amount,
		"reason":  refund.Reason,
		"balance": refund.Balance,
	}
	if refund.GenerationId != nil {
		data["generation_id"] = refund.GenerationId.String()
	}
	s.publish(ctx, events.New(events.CreditsRefunded, data))
}

func (s *creditService) GetBalance(ctx context.Context, userId uuid.UUID) (*dto.CreditBalanceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}
	return s.toBalanceResponse(user), nil
}

func (s *creditService) GetHistory(ctx context.Context, userId uuid.UUID, req *dto.CreditHistoryRequest) (*dto.CreditHistoryResponse, error) {
	limit, offset := s.opts.HistoryLimit, 0
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		offset = req.Offset
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.CreditTransactionRepository()

	txs, err := repo.FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}

	res := &dto.CreditHistoryResponse{
		Transactions: make([]dto.CreditTransactionResponse, 0, len(txs)),
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}
	for _, tx := range txs {
		res.Transactions = append(res.Transactions, dto.CreditTransactionResponse{
			Id:          tx.Id,
			UserId:      tx.UserId,
			Amount:      tx.Amount,
			Type:        string(tx.Type),
			Description: tx.Description,
			RelatedId:   tx.RelatedId,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return res, nil
}

func (s *creditService) AddCredits(ctx context.Context, userId uuid.UUID, req *dto.AddCreditsRequest) (*dto.CreditBalanceResponse, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("Amount must be positive")
	}
	description := req.Description
	if description == "" {
		description = "Credits added by admin"
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId}, specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}

	if _, err := uow.UserRepository().AdjustBalance(ctx, userId, req.Amount); err != nil {
		return nil, err
	}
	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:          uuid.New(),
		UserId:      userId,
		Amount:      req.Amount,
		Type:        entity.CreditTransactionAdminAdd,
		Description: description,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	user.TotalCredits += req.Amount
	s.logger.Info("CREDITS", "Admin added credits", map[string]interface{}{
		"user_id": userId,
		"amount":  req.Amount,
	})
	return s.toBalanceResponse(user), nil
}

// ClaimDaily is the single-user path of the daily reset. It is a no-op for premium
// users and for balances refreshed within the last 24 hours.
func (s *creditService) ClaimDaily(ctx context.Context, userId uuid.UUID) (*dto.ClaimDailyResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}
	if user.PlanTier != entity.PlanTierFree {
		return nil, apperror.Validation("Daily credits are only granted to free tier accounts")
	}

	resets, err := s.resetStale(ctx, &userId)
	if err != nil {
		return nil, err
	}

	if len(resets) == 0 {
		return &dto.ClaimDailyResponse{
			Reset:           false,
			PreviousBalance: user.TotalCredits,
			TotalCredits:    user.TotalCredits,
			NextResetAt:     user.LastCreditUpdate.Add(dailyResetWindow),
		}, nil
	}

	metrics.DailyResetsTotal.WithLabelValues("claim").Inc()
	return &dto.ClaimDailyResponse{
		Reset:           true,
		PreviousBalance: resets[0].PreviousBalance,
		TotalCredits:    resets[0].NewBalance,
		NextResetAt:     s.now().Add(dailyResetWindow),
	}, nil
}

// ResetStaleFreeTier resets every free tier balance not refreshed in the last 24 hours.
// Running it twice in a row resets nobody the second time.
func (s *creditService) ResetStaleFreeTier(ctx context.Context, trigger string) (int, error) {
	resets, err := s.resetStale(ctx, nil)
	if err != nil {
		s.logger.Error("CREDITS", "Daily reset failed", map[string]interface{}{
			"trigger": trigger,
			"error":   err.Error(),
		})
		return 0, err
	}

	metrics.DailyResetsTotal.WithLabelValues(trigger).Add(float64(len(resets)))
	s.logger.Info("CREDITS", "Daily reset completed", map[string]interface{}{
		"trigger":     trigger,
		"users_reset": len(resets),
		"allotment":   s.opts.DailyAllotment,
	})
	for _, r := range resets {
		s.publish(ctx, events.New(events.CreditsDailyReset, map[string]interface{}{
			"user_id":          r.UserId.String(),
			"previous_balance": r.PreviousBalance,
			"balance":          r.NewBalance,
		}))
	}
	return len(resets), nil
}

// resetStale updates the balances and appends one DAILY row per reset user with the
// signed delta, so the ledger sum keeps matching the cached balance.
func (s *creditService) resetStale(ctx context.Context, userId *uuid.UUID) ([]entity.BalanceReset, error) {
	now := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	resets, err := uow.UserRepository().ResetStaleBalances(ctx, contract.BalanceResetCriteria{
		UserID:    userId,
		PlanTier:  string(entity.PlanTierFree),
		Allotment: s.opts.DailyAllotment,
		Cutoff:    now.Add(-dailyResetWindow),
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	if len(resets) == 0 {
		return nil, nil
	}

	rows := make([]*entity.CreditTransaction, 0, len(resets))
	for _, r := range resets {
		rows = append(rows, &entity.CreditTransaction{
			Id:          uuid.New(),
			UserId:      r.UserId,
			Amount:      r.NewBalance - r.PreviousBalance,
			Type:        entity.CreditTransactionDaily,
			Description: fmt.Sprintf("Daily credit reset to %d", r.NewBalance),
			CreatedAt:   now,
		})
	}
	if err := uow.CreditTransactionRepository().CreateBatch(ctx, rows); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return resets, nil
}

// Reconcile compares the cached balance with the ledger sum. The ledger is authoritative.
func (s *creditService) Reconcile(ctx context.Context, userId uuid.UUID) (*dto.ReconcileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User")
	}

	sum, err := uow.CreditTransactionRepository().SumByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	count, err := uow.CreditTransactionRepository().Count(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}

	rec := entity.LedgerReconciliation{
		UserId:        userId,
		CachedBalance: user.TotalCredits,
		LedgerBalance: sum,
		Drift:         user.TotalCredits - sum,
		Transactions:  count,
	}
	if rec.Drift != 0 {
		s.logger.Warn("CREDITS", "Ledger drift detected", map[string]interface{}{
			"user_id": userId,
			"cached":  rec.CachedBalance,
			"ledger":  rec.LedgerBalance,
			"drift":   rec.Drift,
		})
	}

	return &dto.ReconcileResponse{
		UserId:        rec.UserId,
		CachedBalance: rec.CachedBalance,
		LedgerBalance: rec.LedgerBalance,
		Drift:         rec.Drift,
		Transactions:  rec.Transactions,
		Consistent:    rec.Drift == 0,
	}, nil
}

func (s *creditService) toBalanceResponse(user *entity.User) *dto.CreditBalanceResponse {
	res := &dto.CreditBalanceResponse{
		UserId:           user.Id,
		TotalCredits:     user.TotalCredits,
		PlanTier:         string(user.PlanTier),
		LastCreditUpdate: user.LastCreditUpdate,
	}
	if user.PlanTier == entity.PlanTierFree {
		next := user.LastCreditUpdate.Add(dailyResetWindow)
		res.NextResetAt = &next
	}
	return res
}

func (s *creditService) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("CREDITS", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}
