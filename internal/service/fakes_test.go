package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// memStore is an in-memory database. A transaction holds txLock from Begin to
// Commit/Rollback, which serializes writers the way a row lock would, and
// Rollback restores the snapshot taken at Begin.
type memStore struct {
	txLock sync.Mutex

	mu          sync.Mutex
	users       map[uuid.UUID]*entity.User
	txs         []*entity.CreditTransaction
	generations map[uuid.UUID]*entity.Generation
	images      []*entity.Image

	failCreateGeneration error
	failCreateImages     error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*entity.User),
		generations: make(map[uuid.UUID]*entity.Generation),
	}
}

type snapshot struct {
	users       map[uuid.UUID]entity.User
	txs         []*entity.CreditTransaction
	generations map[uuid.UUID]entity.Generation
	images      []*entity.Image
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		users:       make(map[uuid.UUID]entity.User, len(s.users)),
		txs:         append([]*entity.CreditTransaction(nil), s.txs...),
		generations: make(map[uuid.UUID]entity.Generation, len(s.generations)),
		images:      append([]*entity.Image(nil), s.images...),
	}
	for id, u := range s.users {
		snap.users[id] = *u
	}
	for id, g := range s.generations {
		snap.generations[id] = *g
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[uuid.UUID]*entity.User, len(snap.users))
	for id, u := range snap.users {
		u := u
		s.users[id] = &u
	}
	s.generations = make(map[uuid.UUID]*entity.Generation, len(snap.generations))
	for id, g := range snap.generations {
		g := g
		s.generations[id] = &g
	}
	s.txs = snap.txs
	s.images = snap.images
}

func (s *memStore) addUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Id] = &cp
}

func (s *memStore) user(id uuid.UUID) entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) ledger(userID uuid.UUID) []entity.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.CreditTransaction
	for _, tx := range s.txs {
		if tx.UserId == userID {
			out = append(out, *tx)
		}
	}
	return out
}

func (s *memStore) ledgerSum(userID uuid.UUID) int {
	sum := 0
	for _, tx := range s.ledger(userID) {
		sum += tx.Amount
	}
	return sum
}

func (s *memStore) generation(id uuid.UUID) *entity.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok {
		return nil
	}
	cp := *g
	return &cp
}

func (s *memStore) onlyGeneration() *entity.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.generations) != 1 {
		panic(fmt.Sprintf("expected exactly one generation, have %d", len(s.generations)))
	}
	for _, g := range s.generations {
		cp := *g
		return &cp
	}
	return nil
}

func (s *memStore) imageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

type fakeFactory struct {
	store *memStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUoW{store: f.store}
}

type fakeUoW struct {
	store *memStore
	inTx  bool
	snap  snapshot
}

func (u *fakeUoW) Begin(ctx context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.store.txLock.Lock()
	u.snap = u.store.snapshot()
	u.inTx = true
	return nil
}

func (u *fakeUoW) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.inTx = false
	u.store.txLock.Unlock()
	return nil
}

func (u *fakeUoW) Rollback() error {
	if !u.inTx {
		return nil
	}
	u.store.restore(u.snap)
	u.inTx = false
	u.store.txLock.Unlock()
	return nil
}

func (u *fakeUoW) UserRepository() contract.UserRepository {
	return &fakeUserRepo{store: u.store}
}

func (u *fakeUoW) CreditTransactionRepository() contract.CreditTransactionRepository {
	return &fakeCreditRepo{store: u.store}
}

func (u *fakeUoW) GenerationRepository() contract.GenerationRepository {
	return &fakeGenerationRepo{store: u.store}
}

func (u *fakeUoW) ImageRepository() contract.ImageRepository {
	return &fakeImageRepo{store: u.store}
}

// query collects what the specifications ask for.
type query struct {
	match   []func(row map[string]interface{}) bool
	orderBy string
	desc    bool
	limit   int
	offset  int
	preload bool
}

func buildQuery(specs []specification.Specification) query {
	q := query{limit: -1}
	eq := func(field string, value interface{}) {
		q.match = append(q.match, func(row map[string]interface{}) bool { return row[field] == value })
	}
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			eq("id", s.ID)
		case specification.UserOwnedBy:
			eq("user_id", s.UserID)
		case specification.ByStatus:
			eq("status", s.Status)
		case specification.ByModelID:
			eq("model_id", s.ModelID)
		case specification.ByGenerationID:
			eq("generation_id", s.GenerationID)
		case specification.ByArtifactKind:
			eq("kind", s.Kind)
		case specification.ByTransactionType:
			eq("type", s.Type)
		case specification.ByPlanTier:
			eq("plan_tier", s.Tier)
		case specification.ByRelatedID:
			id := s.RelatedID
			q.match = append(q.match, func(row map[string]interface{}) bool {
				related, _ := row["related_id"].(*uuid.UUID)
				return related != nil && *related == id
			})
		case specification.CreatedBefore:
			t := s.T
			q.match = append(q.match, func(row map[string]interface{}) bool {
				return row["created_at"].(time.Time).Before(t)
			})
		case specification.CreditStaleBefore:
			t := s.Cutoff
			q.match = append(q.match, func(row map[string]interface{}) bool {
				return row["last_credit_update"].(time.Time).Before(t)
			})
		case specification.OrderBy:
			q.orderBy, q.desc = s.Field, s.Desc
		case specification.Pagination:
			q.limit, q.offset = s.Limit, s.Offset
		case specification.WithImages:
			q.preload = true
		case specification.ForUpdate:
		default:
			panic(fmt.Sprintf("fake repository does not support %T", spec))
		}
	}
	return q
}

func (q query) matches(row map[string]interface{}) bool {
	for _, m := range q.match {
		if !m(row) {
			return false
		}
	}
	return true
}

func page[T any](q query, rows []T, createdAt func(T) time.Time) []T {
	if q.orderBy == "created_at" {
		sort.SliceStable(rows, func(a, b int) bool {
			if q.desc {
				return createdAt(rows[a]).After(createdAt(rows[b]))
			}
			return createdAt(rows[a]).Before(createdAt(rows[b]))
		})
	}
	start := q.offset
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if q.limit >= 0 && start+q.limit < end {
		end = start + q.limit
	}
	return rows[start:end]
}

func userRow(u *entity.User) map[string]interface{} {
	return map[string]interface{}{
		"id":                 u.Id,
		"plan_tier":          string(u.PlanTier),
		"last_credit_update": u.LastCreditUpdate,
		"created_at":         u.CreatedAt,
	}
}

func txRow(tx *entity.CreditTransaction) map[string]interface{} {
	return map[string]interface{}{
		"id":         tx.Id,
		"user_id":    tx.UserId,
		"type":       string(tx.Type),
		"related_id": tx.RelatedId,
		"created_at": tx.CreatedAt,
	}
}

func generationRow(g *entity.Generation) map[string]interface{} {
	return map[string]interface{}{
		"id":         g.Id,
		"user_id":    g.UserId,
		"status":     string(g.Status),
		"model_id":   g.ModelId,
		"created_at": g.CreatedAt,
	}
}

func imageRow(img *entity.Image) map[string]interface{} {
	return map[string]interface{}{
		"id":            img.Id,
		"user_id":       img.UserId,
		"generation_id": img.GenerationId,
		"kind":          string(img.Kind),
		"created_at":    img.CreatedAt,
	}
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.addUser(user)
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.store.addUser(user)
	return nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	users, err := r.FindAll(ctx, specs...)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return users[0], nil
}

func (r *fakeUserRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error) {
	q := buildQuery(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.User
	for _, u := range r.store.users {
		if q.matches(userRow(u)) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return page(q, out, func(u *entity.User) time.Time { return u.CreatedAt }), nil
}

func (r *fakeUserRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	users, err := r.FindAll(ctx, specs...)
	return int64(len(users)), err
}

func (r *fakeUserRepo) AdjustBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok || u.TotalCredits+delta < 0 {
		return false, nil
	}
	u.TotalCredits += delta
	return true, nil
}

func (r *fakeUserRepo) ResetStaleBalances(ctx context.Context, c contract.BalanceResetCriteria) ([]entity.BalanceReset, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.BalanceReset
	for _, u := range r.store.users {
		if c.UserID != nil && u.Id != *c.UserID {
			continue
		}
		if string(u.PlanTier) != c.PlanTier || !u.LastCreditUpdate.Before(c.Cutoff) {
			continue
		}
		out = append(out, entity.BalanceReset{UserId: u.Id, PreviousBalance: u.TotalCredits, NewBalance: c.Allotment})
		u.TotalCredits = c.Allotment
		u.LastCreditUpdate = c.Now
	}
	return out, nil
}

type fakeCreditRepo struct {
	store *memStore
}

func (r *fakeCreditRepo) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	return r.CreateBatch(ctx, []*entity.CreditTransaction{tx})
}

func (r *fakeCreditRepo) CreateBatch(ctx context.Context, txs []*entity.CreditTransaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range txs {
		cp := *tx
		r.store.txs = append(r.store.txs, &cp)
	}
	return nil
}

func (r *fakeCreditRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CreditTransaction, error) {
	q := buildQuery(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.CreditTransaction
	for _, tx := range r.store.txs {
		if q.matches(txRow(tx)) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return page(q, out, func(tx *entity.CreditTransaction) time.Time { return tx.CreatedAt }), nil
}

func (r *fakeCreditRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	txs, err := r.FindAll(ctx, specs...)
	return int64(len(txs)), err
}

func (r *fakeCreditRepo) SumByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.store.ledgerSum(userID), nil
}

type fakeGenerationRepo struct {
	store *memStore
}

func (r *fakeGenerationRepo) Create(ctx context.Context, g *entity.Generation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failCreateGeneration != nil {
		return r.store.failCreateGeneration
	}
	cp := *g
	cp.Images = nil
	r.store.generations[g.Id] = &cp
	return nil
}

func (r *fakeGenerationRepo) Update(ctx context.Context, g *entity.Generation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *g
	cp.Images = nil
	r.store.generations[g.Id] = &cp
	return nil
}

func (r *fakeGenerationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.generations, id)
	return nil
}

func (r *fakeGenerationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Generation, error) {
	gens, err := r.FindAll(ctx, specs...)
	if err != nil || len(gens) == 0 {
		return nil, err
	}
	return gens[0], nil
}

func (r *fakeGenerationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Generation, error) {
	q := buildQuery(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Generation
	for _, g := range r.store.generations {
		if !q.matches(generationRow(g)) {
			continue
		}
		cp := *g
		if q.preload {
			for _, img := range r.store.images {
				if img.GenerationId == g.Id {
					imgCopy := *img
					cp.Images = append(cp.Images, &imgCopy)
				}
			}
		}
		out = append(out, &cp)
	}
	return page(q, out, func(g *entity.Generation) time.Time { return g.CreatedAt }), nil
}

func (r *fakeGenerationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	gens, err := r.FindAll(ctx, specs...)
	return int64(len(gens)), err
}

func (r *fakeGenerationRepo) TransitionFromProcessing(ctx context.Context, id uuid.UUID, t contract.GenerationTransition) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	g, ok := r.store.generations[id]
	if !ok || g.Status != entity.GenerationStatusProcessing {
		return false, nil
	}
	g.Status = t.Status
	g.Error = t.Error
	completedAt := t.CompletedAt
	g.CompletedAt = &completedAt
	g.UpdatedAt = completedAt
	return true, nil
}

func (r *fakeGenerationRepo) Stats(ctx context.Context, userID uuid.UUID) (*entity.GenerationStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stats := &entity.GenerationStats{}
	for _, g := range r.store.generations {
		if g.UserId != userID {
			continue
		}
		stats.Total++
		switch g.Status {
		case entity.GenerationStatusCompleted:
			stats.Completed++
		case entity.GenerationStatusFailed:
			stats.Failed++
		case entity.GenerationStatusProcessing:
			stats.Processing++
		}
		if g.Status != entity.GenerationStatusFailed {
			stats.CreditsSpent += int64(g.CreditsUsed)
		}
	}
	return stats, nil
}

type fakeImageRepo struct {
	store *memStore
}

func (r *fakeImageRepo) CreateBatch(ctx context.Context, images []*entity.Image) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failCreateImages != nil {
		return r.store.failCreateImages
	}
	for _, img := range images {
		cp := *img
		r.store.images = append(r.store.images, &cp)
	}
	return nil
}

func (r *fakeImageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Image, error) {
	q := buildQuery(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Image
	for _, img := range r.store.images {
		if q.matches(imageRow(img)) {
			cp := *img
			out = append(out, &cp)
		}
	}
	return page(q, out, func(img *entity.Image) time.Time { return img.CreatedAt }), nil
}

func (r *fakeImageRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Image, error) {
	images, err := r.FindAll(ctx, specs...)
	if err != nil || len(images) == 0 {
		return nil, err
	}
	return images[0], nil
}

func (r *fakeImageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	images, err := r.FindAll(ctx, specs...)
	return int64(len(images)), err
}

func (r *fakeImageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.images[:0:0]
	for _, img := range r.store.images {
		if img.Id != id {
			kept = append(kept, img)
		}
	}
	r.store.images = kept
	return nil
}

func (r *fakeImageRepo) DeleteByGeneration(ctx context.Context, generationID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.images[:0:0]
	for _, img := range r.store.images {
		if img.GenerationId != generationID {
			kept = append(kept, img)
		}
	}
	r.store.images = kept
	return nil
}
