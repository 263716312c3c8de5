package implementation

import (
	"context"
	"errors"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/mapper"
	"ai-mediagen-be/internal/model"
	"ai-mediagen-be/internal/repository/contract"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GenerationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GenerationMapper
}

func NewGenerationRepository(db *gorm.DB) contract.GenerationRepository {
	return &GenerationRepositoryImpl{
		db:     db,
		mapper: mapper.NewGenerationMapper(),
	}
}

func (r *GenerationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *GenerationRepositoryImpl) Create(ctx context.Context, generation *entity.Generation) error {
	m := r.mapper.ToModel(generation)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*generation = *r.mapper.ToEntity(m)
	return nil
}

func (r *GenerationRepositoryImpl) Update(ctx context.Context, generation *entity.Generation) error {
	m := r.mapper.ToModel(generation)
	if err := r.db.WithContext(ctx).Omit("Images").Save(m).Error; err != nil {
		return err
	}
	images := generation.Images
	*generation = *r.mapper.ToEntity(m)
	generation.Images = images
	return nil
}

func (r *GenerationRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Generation{}).Error
}

func (r *GenerationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Generation, error) {
	var m model.Generation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *GenerationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Generation, error) {
	var rows []*model.Generation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows), nil
}

func (r *GenerationRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Generation{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GenerationRepositoryImpl) TransitionFromProcessing(ctx context.Context, id uuid.UUID, t contract.GenerationTransition) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Generation{}).
		Where("id = ? AND status = ?", id, string(entity.GenerationStatusProcessing)).
		Updates(map[string]interface{}{
			"status":       string(t.Status),
			"error":        t.Error,
			"completed_at": t.CompletedAt,
			"updated_at":   t.CompletedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GenerationRepositoryImpl) Stats(ctx context.Context, userID uuid.UUID) (*entity.GenerationStats, error) {
	var row struct {
		Total        int64
		Completed    int64
		Failed       int64
		Processing   int64
		CreditsSpent int64
	}
	// Failed generations are refunded, so they do not count towards spent credits.
	err := r.db.WithContext(ctx).Model(&model.Generation{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
			COUNT(*) FILTER (WHERE status = 'PROCESSING') AS processing,
			COALESCE(SUM(credits_used) FILTER (WHERE status <> 'FAILED'), 0) AS credits_spent`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &entity.GenerationStats{
		Total:        row.Total,
		Completed:    row.Completed,
		Failed:       row.Failed,
		Processing:   row.Processing,
		CreditsSpent: row.CreditsSpent,
	}, nil
}
