package gemini

import (
	"context"
	"errors"
	"fmt"

	"ai-mediagen-be/pkg/provider"

	"google.golang.org/genai"
)

const (
	ProviderName = "gemini"
	defaultModel = "gemini-2.5-flash-image-preview"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider is a synchronous image provider: every call returns inline image bytes.
type GeminiProvider struct {
	models    contentGenerator
	modelName string
}

var _ provider.Provider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithGenerator(client.Models, modelName), nil
}

func newWithGenerator(models contentGenerator, modelName string) *GeminiProvider {
	if modelName == "" {
		modelName = defaultModel
	}
	return &GeminiProvider{models: models, modelName: modelName}
}

func (p *GeminiProvider) Name() string        { return ProviderName }
func (p *GeminiProvider) Mode() provider.Mode { return provider.ModeSync }

func (p *GeminiProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	batch := req.BatchSize
	if batch < 1 {
		batch = 1
	}

	result := &provider.Result{}
	for i := 0; i < batch; i++ {
		artifact, err := p.generateOne(ctx, req)
		if err != nil {
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, *artifact)
	}
	return &provider.Submission{Result: result}, nil
}

func (p *GeminiProvider) generateOne(ctx context.Context, req provider.Request) (*provider.Artifact, error) {
	resp, err := p.models.GenerateContent(ctx, p.modelName, genai.Text(buildPrompt(req)), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini returned no candidates")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &provider.Artifact{
				Kind:     provider.ArtifactImage,
				Data:     part.InlineData.Data,
				MimeType: mime,
				Width:    req.Width,
				Height:   req.Height,
			}, nil
		}
	}
	return nil, errors.New("gemini response contained no image data")
}

func buildPrompt(req provider.Request) string {
	prompt := req.Prompt
	if req.Style != "" {
		prompt = fmt.Sprintf("%s, %s", prompt, req.Style)
	}
	if req.AspectRatio != "" {
		prompt = fmt.Sprintf("%s. Aspect ratio %s.", prompt, req.AspectRatio)
	}
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s Avoid: %s.", prompt, req.NegativePrompt)
	}
	return prompt
}
