package contract

import (
	"context"
	"time"

	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/repository/specification"

	"github.com/google/uuid"
)

// GenerationTransition moves a PROCESSING generation to a terminal status.
type GenerationTransition struct {
	Status      entity.GenerationStatus
	Error       *string
	CompletedAt time.Time
}

type GenerationRepository interface {
	Create(ctx context.Context, generation *entity.Generation) error
	Update(ctx context.Context, generation *entity.Generation) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Generation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Generation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// TransitionFromProcessing applies t only if the row is still PROCESSING.
	// The boolean reports whether this call performed the transition.
	TransitionFromProcessing(ctx context.Context, id uuid.UUID, t GenerationTransition) (bool, error)

	Stats(ctx context.Context, userID uuid.UUID) (*entity.GenerationStats, error)
}

type ImageRepository interface {
	CreateBatch(ctx context.Context, images []*entity.Image) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Image, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Image, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByGeneration(ctx context.Context, generationID uuid.UUID) error
}
