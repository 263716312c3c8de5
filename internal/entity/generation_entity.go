package entity

import (
	"time"

	"github.com/google/uuid"
)

type GenerationStatus string
type ArtifactKind string

const (
	GenerationStatusProcessing GenerationStatus = "PROCESSING"
	GenerationStatusCompleted  GenerationStatus = "COMPLETED"
	GenerationStatusFailed     GenerationStatus = "FAILED"

	ArtifactKindImage ArtifactKind = "image"
	ArtifactKindVideo ArtifactKind = "video"
)

// GenerationParams keeps everything needed to replay a request.
type GenerationParams struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	Style       string `json:"style,omitempty"`
	InputImage  string `json:"input_image,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Quality     string `json:"quality,omitempty"`
}

type Generation struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	Prompt         string
	NegativePrompt string
	ModelId        string
	Params         GenerationParams
	Status         GenerationStatus
	CreditsUsed    int
	Error          *string
	ProviderTaskId *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time

	Images []*Image
}

func (g *Generation) IsTerminal() bool {
	return g.Status == GenerationStatusCompleted || g.Status == GenerationStatusFailed
}

type Image struct {
	Id           uuid.UUID
	GenerationId uuid.UUID
	UserId       uuid.UUID
	Kind         ArtifactKind
	URL          string
	ThumbnailURL *string
	// Backend object paths, nil when the provider URL is served directly.
	StoragePath   *string
	ThumbnailPath *string
	Width         int
	Height        int
	CreatedAt     time.Time
}

type GenerationStats struct {
	Total        int64
	Completed    int64
	Failed       int64
	Processing   int64
	CreditsSpent int64
}
