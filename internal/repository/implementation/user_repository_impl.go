package implementation

import (
	"context"
	"errors"
	"strings"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/mapper"
	"ai-mediagen-be/internal/model"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UserMapper
}

func NewUserRepository(db *gorm.DB) contract.UserRepository {
	return &UserRepositoryImpl{
		db:     db,
		mapper: mapper.NewUserMapper(),
	}
}

func (r *UserRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entity.User) error {
	modelUser := r.mapper.ToModel(user)
	if err := r.db.WithContext(ctx).Create(modelUser).Error; err != nil {
		return err
	}
	*user = *r.mapper.ToEntity(modelUser)
	return nil
}

func (r *UserRepositoryImpl) Update(ctx context.Context, user *entity.User) error {
	modelUser := r.mapper.ToModel(user)
	if err := r.db.WithContext(ctx).Save(modelUser).Error; err != nil {
		return err
	}
	*user = *r.mapper.ToEntity(modelUser)
	return nil
}

func (r *UserRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	var modelUser model.User
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.First(&modelUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return r.mapper.ToEntity(&modelUser), nil
}

func (r *UserRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error) {
	var modelUsers []*model.User
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.Find(&modelUsers).Error; err != nil {
		return nil, err
	}

	return r.mapper.ToEntities(modelUsers), nil
}

func (r *UserRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.User{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *UserRepositoryImpl) AdjustBalance(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND total_credits + ? >= 0", id, delta).
		Update("total_credits", gorm.Expr("total_credits + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

const resetStaleBalancesSQL = `
UPDATE users AS u
SET total_credits = @allotment, last_credit_update = @now, updated_at = @now
FROM (
	SELECT id, total_credits FROM users
	WHERE plan_tier = @tier AND last_credit_update < @cutoff AND deleted_at IS NULL%s
	FOR UPDATE
) AS prev
WHERE u.id = prev.id AND u.plan_tier = @tier AND u.last_credit_update < @cutoff
RETURNING u.id AS user_id, prev.total_credits AS previous_balance, u.total_credits AS new_balance`

func (r *UserRepositoryImpl) ResetStaleBalances(ctx context.Context, c contract.BalanceResetCriteria) ([]entity.BalanceReset, error) {
	args := map[string]interface{}{
		"allotment": c.Allotment,
		"now":       c.Now,
		"tier":      c.PlanTier,
		"cutoff":    c.Cutoff,
	}
	userFilter := ""
	if c.UserID != nil {
		userFilter = " AND id = @user_id"
		args["user_id"] = *c.UserID
	}
	query := strings.Replace(resetStaleBalancesSQL, "%s", userFilter, 1)

	var rows []struct {
		UserId          uuid.UUID
		PreviousBalance int
		NewBalance      int
	}
	if err := r.db.WithContext(ctx).Raw(query, args).Scan(&rows).Error; err != nil {
		return nil, err
	}

	resets := make([]entity.BalanceReset, len(rows))
	for i, row := range rows {
		resets[i] = entity.BalanceReset{
			UserId:          row.UserId,
			PreviousBalance: row.PreviousBalance,
			NewBalance:      row.NewBalance,
		}
	}
	return resets, nil
}
