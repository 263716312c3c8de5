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

type ImageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GenerationMapper
}

func NewImageRepository(db *gorm.DB) contract.ImageRepository {
	return &ImageRepositoryImpl{
		db:     db,
		mapper: mapper.NewGenerationMapper(),
	}
}

func (r *ImageRepositoryImpl) CreateBatch(ctx context.Context, images []*entity.Image) error {
	if len(images) == 0 {
		return nil
	}
	models := make([]*model.Image, len(images))
	for i, img := range images {
		models[i] = r.mapper.ImageToModel(img)
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*images[i] = *r.mapper.ImageToEntity(m)
	}
	return nil
}

func (r *ImageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Image{}, "id = ?", id).Error
}

func (r *ImageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Image, error) {
	var row model.Image
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ImageToEntity(&row), nil
}

func (r *ImageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.Image{})
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ImageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Image, error) {
	var rows []*model.Image
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ImagesToEntities(rows), nil
}

func (r *ImageRepositoryImpl) DeleteByGeneration(ctx context.Context, generationID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("generation_id = ?", generationID).Delete(&model.Image{}).Error
}
