package dto

import (
	"time"

	"github.com/google/uuid"
)

type GenerateRequest struct {
	ModelId        string `json:"model_id" validate:"required"`
	Prompt         string `json:"prompt" validate:"required"`
	NegativePrompt string `json:"negative_prompt"`
	AspectRatio    string `json:"aspect_ratio"`
	Width          int    `json:"width" validate:"gte=0"`
	Height         int    `json:"height" validate:"gte=0"`
	BatchSize      int    `json:"batch_size" validate:"gte=0"`
	Seed           *int64 `json:"seed"`
	Style          string `json:"style"`
	InputImage     string `json:"input_image"`

	// Video models
	Duration int    `json:"duration" validate:"gte=0"`
	Quality  string `json:"quality"`
}

type GenerationImageResponse struct {
	Id           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	Url          string    `json:"url"`
	ThumbnailUrl *string   `json:"thumbnail_url"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
}

type GenerationResponse struct {
	Id             uuid.UUID                 `json:"id"`
	Status         string                    `json:"status"`
	CreditsUsed    int                       `json:"credits_used"`
	Images         []GenerationImageResponse `json:"images"`
	Error          *string                   `json:"error"`
	ModelId        string                    `json:"model_id"`
	Prompt         string                    `json:"prompt"`
	NegativePrompt string                    `json:"negative_prompt,omitempty"`
	AspectRatio    string                    `json:"aspect_ratio,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	CompletedAt    *time.Time                `json:"completed_at"`
}

// GenerationStatusResponse adds the live polling view while a job is in flight.
type GenerationStatusResponse struct {
	GenerationResponse
	Progress       int    `json:"progress"`
	ProviderStatus string `json:"provider_status,omitempty"`
	PollAttempts   int    `json:"poll_attempts"`
}

type ListGenerationsRequest struct {
	ModelId string `query:"model_id"`
	Status  string `query:"status" validate:"omitempty,oneof=PROCESSING COMPLETED FAILED"`
	Limit   int    `query:"limit" validate:"gte=0,lte=100"`
	Offset  int    `query:"offset" validate:"gte=0"`
}

type ListGenerationsResponse struct {
	Generations []GenerationResponse `json:"generations"`
	Total       int64                `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type GenerationStatsResponse struct {
	Total        int64 `json:"total"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
	Processing   int64 `json:"processing"`
	CreditsSpent int64 `json:"credits_spent"`
}

type ModelResponse struct {
	Id              string   `json:"id"`
	Name            string   `json:"name"`
	Provider        string   `json:"provider"`
	Kind            string   `json:"kind"`
	Credits         int      `json:"credits"`
	MaxBatchSize    int      `json:"max_batch_size"`
	MaxPromptLength int      `json:"max_prompt_length"`
	AspectRatios    []string `json:"aspect_ratios"`
	Durations       []int    `json:"durations,omitempty"`
	Qualities       []string `json:"qualities,omitempty"`
}

type CleanupStaleResponse struct {
	Failed   int `json:"failed"`
	Refunded int `json:"refunded"`
}

type ListImagesRequest struct {
	GenerationId string `query:"generation_id" validate:"omitempty,uuid"`
	Kind         string `query:"kind" validate:"omitempty,oneof=image video"`
	Limit        int    `query:"limit" validate:"gte=0,lte=100"`
	Offset       int    `query:"offset" validate:"gte=0"`
}

type ImageResponse struct {
	Id           uuid.UUID `json:"id"`
	GenerationId uuid.UUID `json:"generation_id"`
	Kind         string    `json:"kind"`
	Url          string    `json:"url"`
	ThumbnailUrl *string   `json:"thumbnail_url"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListImagesResponse struct {
	Images []ImageResponse `json:"images"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
