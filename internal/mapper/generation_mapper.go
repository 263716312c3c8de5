package mapper

import (
	"ai-mediagen-be/internal/entity"
	"ai-mediagen-be/internal/model"

	"gorm.io/datatypes"
)

type GenerationMapper struct{}

func NewGenerationMapper() *GenerationMapper {
	return &GenerationMapper{}
}

func (m *GenerationMapper) ToEntity(g *model.Generation) *entity.Generation {
	if g == nil {
		return nil
	}
	p := g.Params.Data()
	e := &entity.Generation{
		Id:             g.Id,
		UserId:         g.UserId,
		Prompt:         g.Prompt,
		NegativePrompt: g.NegativePrompt,
		ModelId:        g.ModelId,
		Params: entity.GenerationParams{
			AspectRatio: p.AspectRatio,
			Width:       p.Width,
			Height:      p.Height,
			BatchSize:   p.BatchSize,
			Seed:        p.Seed,
			Style:       p.Style,
			InputImage:  p.InputImage,
			Duration:    p.Duration,
			Quality:     p.Quality,
		},
		Status:         entity.GenerationStatus(g.Status),
		CreditsUsed:    g.CreditsUsed,
		Error:          g.Error,
		ProviderTaskId: g.ProviderTaskId,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
		CompletedAt:    g.CompletedAt,
	}
	if len(g.Images) > 0 {
		e.Images = make([]*entity.Image, len(g.Images))
		for i := range g.Images {
			e.Images[i] = m.ImageToEntity(&g.Images[i])
		}
	}
	return e
}

// ToModel leaves Images out; image rows are written through the image repository.
func (m *GenerationMapper) ToModel(g *entity.Generation) *model.Generation {
	if g == nil {
		return nil
	}
	return &model.Generation{
		Id:             g.Id,
		UserId:         g.UserId,
		Prompt:         g.Prompt,
		NegativePrompt: g.NegativePrompt,
		ModelId:        g.ModelId,
		Params: datatypes.NewJSONType(model.GenerationParams{
			AspectRatio: g.Params.AspectRatio,
			Width:       g.Params.Width,
			Height:      g.Params.Height,
			BatchSize:   g.Params.BatchSize,
			Seed:        g.Params.Seed,
			Style:       g.Params.Style,
			InputImage:  g.Params.InputImage,
			Duration:    g.Params.Duration,
			Quality:     g.Params.Quality,
		}),
		Status:         string(g.Status),
		CreditsUsed:    g.CreditsUsed,
		Error:          g.Error,
		ProviderTaskId: g.ProviderTaskId,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
		CompletedAt:    g.CompletedAt,
	}
}

func (m *GenerationMapper) ToEntities(rows []*model.Generation) []*entity.Generation {
	entities := make([]*entity.Generation, len(rows))
	for i, g := range rows {
		entities[i] = m.ToEntity(g)
	}
	return entities
}

func (m *GenerationMapper) ImageToEntity(i *model.Image) *entity.Image {
	if i == nil {
		return nil
	}
	return &entity.Image{
		Id:            i.Id,
		GenerationId:  i.GenerationId,
		UserId:        i.UserId,
		Kind:          entity.ArtifactKind(i.Kind),
		URL:           i.URL,
		ThumbnailURL:  i.ThumbnailURL,
		StoragePath:   i.StoragePath,
		ThumbnailPath: i.ThumbnailPath,
		Width:         i.Width,
		Height:        i.Height,
		CreatedAt:     i.CreatedAt,
	}
}

func (m *GenerationMapper) ImageToModel(i *entity.Image) *model.Image {
	if i == nil {
		return nil
	}
	return &model.Image{
		Id:            i.Id,
		GenerationId:  i.GenerationId,
		UserId:        i.UserId,
		Kind:          string(i.Kind),
		URL:           i.URL,
		ThumbnailURL:  i.ThumbnailURL,
		StoragePath:   i.StoragePath,
		ThumbnailPath: i.ThumbnailPath,
		Width:         i.Width,
		Height:        i.Height,
		CreatedAt:     i.CreatedAt,
	}
}

func (m *GenerationMapper) ImagesToEntities(rows []*model.Image) []*entity.Image {
	entities := make([]*entity.Image, len(rows))
	for i, img := range rows {
		entities[i] = m.ImageToEntity(img)
	}
	return entities
}
