package service

import (
	"context"
	"slices"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/pkg/apperror"

	"github.com/google/uuid"
)

// ObjectRemover deletes stored artifacts. Failures are the remover's to log.
type ObjectRemover interface {
	DeleteImage(ctx context.Context, objectPath string)
}

type IImageService interface {
	ListMine(ctx context.Context, userId uuid.UUID, req *dto.ListImagesRequest) (*dto.ListImagesResponse, error)
	DeleteImage(ctx context.Context, userId uuid.UUID, imageId uuid.UUID) error
}

type imageService struct {
	uowFactory unitofwork.RepositoryFactory
	storage    ObjectRemover
	logger     logger.ILogger
}

func NewImageService(uowFactory unitofwork.RepositoryFactory, storage ObjectRemover, log logger.ILogger) IImageService {
	return &imageService{
		uowFactory: uowFactory,
		storage:    storage,
		logger:     log,
	}
}

// ListMine pages through the caller's artifacts, newest first.
func (s *imageService) ListMine(ctx context.Context, userId uuid.UUID, req *dto.ListImagesRequest) (*dto.ListImagesResponse, error) {
	limit, offset := defaultListLimit, 0
	filters := []specification.Specification{specification.UserOwnedBy{UserID: userId}}
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		offset = req.Offset
		if req.GenerationId != "" {
			generationId, err := uuid.Parse(req.GenerationId)
			if err != nil {
				return nil, apperror.Validation("Invalid generation_id")
			}
			filters = append(filters, specification.ByGenerationID{GenerationID: generationId})
		}
		if req.Kind != "" {
			filters = append(filters, specification.ByArtifactKind{Kind: req.Kind})
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.ImageRepository()

	query := append(slices.Clone(filters),
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	images, err := repo.FindAll(ctx, query...)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	res := &dto.ListImagesResponse{
		Images: make([]dto.ImageResponse, 0, len(images)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, img := range images {
		res.Images = append(res.Images, toImageResponse(img))
	}
	return res, nil
}

// DeleteImage removes one artifact row, then its stored objects. The parent
// generation and its ledger entries are left alone.
func (s *imageService) DeleteImage(ctx context.Context, userId uuid.UUID, imageId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	img, err := uow.ImageRepository().FindOne(ctx, specification.ByID{ID: imageId})
	if err != nil {
		return err
	}
	if img == nil {
		return apperror.NotFound("Image")
	}
	if img.UserId != userId {
		s.logger.Warn("IMAGE", "Rejected delete of another user's image", map[string]interface{}{
			"user_id":  userId,
			"image_id": imageId,
		})
		return apperror.UnauthorizedAccess("image")
	}

	if err := uow.ImageRepository().Delete(ctx, img.Id); err != nil {
		return err
	}

	if img.StoragePath != nil {
		s.storage.DeleteImage(ctx, *img.StoragePath)
	}
	if img.ThumbnailPath != nil {
		s.storage.DeleteImage(ctx, *img.ThumbnailPath)
	}

	s.logger.Info("IMAGE", "Image deleted", map[string]interface{}{
		"user_id":       userId,
		"image_id":      img.Id,
		"generation_id": img.GenerationId,
	})
	return nil
}

func toImageResponse(img *entity.Image) dto.ImageResponse {
	return dto.ImageResponse{
		Id:           img.Id,
		GenerationId: img.GenerationId,
		Kind:         string(img.Kind),
		Url:          img.URL,
		ThumbnailUrl: img.ThumbnailURL,
		Width:        img.Width,
		Height:       img.Height,
		CreatedAt:    img.CreatedAt,
	}
}
