package provider

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"ai-mediagen-be/pkg/apperror"
)

const defaultMaxPromptLength = 1000

// ModelSpec describes one billable model and the constraints its requests must satisfy.
type ModelSpec struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Provider        string       `json:"provider"`
	Kind            ArtifactKind `json:"kind"`
	Credits         int          `json:"credits"`
	MaxBatchSize    int          `json:"max_batch_size"`
	MaxPromptLength int          `json:"max_prompt_length"`
	AspectRatios    []string     `json:"aspect_ratios"`
	MinDimension    int          `json:"min_dimension,omitempty"`
	MaxDimension    int          `json:"max_dimension,omitempty"`
	Durations       []int        `json:"durations,omitempty"`
	Qualities       []string     `json:"qualities,omitempty"`
}

var imageAspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3"}

// DefaultCatalog lists the models served by the built-in providers.
func DefaultCatalog() []ModelSpec {
	return []ModelSpec{
		{
			ID: "gemini-flash-image", Name: "Gemini Flash Image", Provider: "gemini", Kind: ArtifactImage,
			Credits: 10, MaxBatchSize: 4, MaxPromptLength: 1000, AspectRatios: imageAspectRatios,
			MinDimension: 256, MaxDimension: 2048,
		},
		{
			ID: "flux-pro-1.1", Name: "Flux Pro 1.1", Provider: "flux", Kind: ArtifactImage,
			Credits: 20, MaxBatchSize: 1, MaxPromptLength: 1000, AspectRatios: imageAspectRatios,
			MinDimension: 256, MaxDimension: 1440,
		},
		{
			ID: "flux-kontext-pro", Name: "Flux Kontext Pro", Provider: "flux", Kind: ArtifactImage,
			Credits: 25, MaxBatchSize: 1, MaxPromptLength: 1000, AspectRatios: imageAspectRatios,
			MinDimension: 256, MaxDimension: 1440,
		},
		{
			ID: "midjourney", Name: "Midjourney v6", Provider: "midjourney", Kind: ArtifactImage,
			Credits: 30, MaxBatchSize: 1, MaxPromptLength: 1000,
			AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"},
		},
		{
			ID: "runway-gen3", Name: "Runway Gen-3 Video", Provider: "runway", Kind: ArtifactVideo,
			Credits: 50, MaxBatchSize: 1, MaxPromptLength: 1800,
			AspectRatios: []string{"16:9", "4:3", "1:1", "3:4", "9:16"},
			Durations:    []int{5, 8},
			Qualities:    []string{"720p", "1080p"},
		},
	}
}

// SimulatedModel is only registered when provider simulation is enabled outside production.
func SimulatedModel() ModelSpec {
	return ModelSpec{
		ID: "simulated", Name: "Simulated Provider", Provider: "simulated", Kind: ArtifactImage,
		Credits: 1, MaxBatchSize: 1, MaxPromptLength: defaultMaxPromptLength, AspectRatios: imageAspectRatios,
	}
}

// Cost returns the credits charged for quantity outputs of this model.
func (m ModelSpec) Cost(quantity int) int {
	if quantity < 1 {
		quantity = 1
	}
	return m.Credits * quantity
}

// Normalize fills defaults (batch size, aspect ratio, dimensions, video options) in place.
func (m ModelSpec) Normalize(req *Request) {
	req.ModelID = m.ID
	if req.BatchSize == 0 {
		req.BatchSize = 1
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
		if m.Kind == ArtifactVideo {
			req.AspectRatio = "16:9"
		}
	}
	if m.Kind == ArtifactImage && req.Width == 0 && req.Height == 0 {
		req.Width, req.Height = Dimensions(req.AspectRatio)
	}
	if m.Kind == ArtifactVideo {
		if req.Duration == 0 {
			req.Duration = 5
		}
		if req.Quality == "" {
			req.Quality = "720p"
		}
	}
}

// Validate checks a normalized request against the model constraints.
func (m ModelSpec) Validate(req Request) error {
	if req.Prompt == "" {
		return apperror.Validation("Prompt is required")
	}
	maxPrompt := m.MaxPromptLength
	if maxPrompt == 0 {
		maxPrompt = defaultMaxPromptLength
	}
	if utf8.RuneCountInString(req.Prompt) > maxPrompt {
		return apperror.Validation(fmt.Sprintf("Prompt must be %d characters or less", maxPrompt))
	}
	if req.BatchSize < 1 || req.BatchSize > m.MaxBatchSize {
		return apperror.Validation(fmt.Sprintf("Batch size must be between 1 and %d", m.MaxBatchSize))
	}
	if len(m.AspectRatios) > 0 && !slices.Contains(m.AspectRatios, req.AspectRatio) {
		return apperror.Validation(fmt.Sprintf("Aspect ratio %s is not supported by %s", req.AspectRatio, m.Name))
	}
	if m.MinDimension > 0 && (req.Width < m.MinDimension || req.Height < m.MinDimension) {
		return apperror.Validation(fmt.Sprintf("Width and height must be at least %d", m.MinDimension))
	}
	if m.MaxDimension > 0 && (req.Width > m.MaxDimension || req.Height > m.MaxDimension) {
		return apperror.Validation(fmt.Sprintf("Width and height must be at most %d", m.MaxDimension))
	}
	if m.Kind == ArtifactVideo {
		if !slices.Contains(m.Durations, req.Duration) {
			return apperror.Validation(fmt.Sprintf("Duration must be one of %v seconds", m.Durations))
		}
		if !slices.Contains(m.Qualities, req.Quality) {
			return apperror.Validation(fmt.Sprintf("Quality must be one of %v", m.Qualities))
		}
		if req.Duration == 8 && req.Quality == "1080p" {
			return apperror.Validation("Cannot use 1080p quality with 8-second duration")
		}
	}
	return nil
}

var aspectDimensions = map[string][2]int{
	"1:1":  {1024, 1024},
	"16:9": {1344, 768},
	"9:16": {768, 1344},
	"4:3":  {1152, 896},
	"3:4":  {896, 1152},
	"3:2":  {1216, 832},
	"2:3":  {832, 1216},
}

// Dimensions returns the pixel size used for an aspect ratio, 1024x1024 when unknown.
func Dimensions(aspectRatio string) (int, int) {
	if d, ok := aspectDimensions[aspectRatio]; ok {
		return d[0], d[1]
	}
	return 1024, 1024
}
