package midjourney

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-mediagen-be/pkg/provider"
)

const (
	ProviderName   = "midjourney"
	DefaultBaseURL = "https://api.kie.ai/api/v1/mj"
)

var states = provider.NewStateMap(
	[]string{"completed"},
	[]string{"failed"},
)

var aspectRatios = map[string]string{
	"1:1":  "1:1",
	"16:9": "16:9",
	"9:16": "9:16",
	"4:3":  "4:3",
	"3:4":  "3:4",
}

type MidjourneyProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

var _ provider.AsyncProvider = &MidjourneyProvider{}

func NewMidjourneyProvider(baseURL, apiKey string) *MidjourneyProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MidjourneyProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type imagineRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	Version     string `json:"version"`
	AspectRatio string `json:"aspectRatio"`
	Quality     int    `json:"quality"`
}

type imagineResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

type messageResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error"`
}

func (p *MidjourneyProvider) Name() string        { return ProviderName }
func (p *MidjourneyProvider) Mode() provider.Mode { return provider.ModeAsync }

func (p *MidjourneyProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.APIKey}
}

func (p *MidjourneyProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	prompt := req.Prompt
	if req.InputImage != "" {
		prompt = fmt.Sprintf("%s %s", req.InputImage, prompt)
	}
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s --no %s", prompt, req.NegativePrompt)
	}

	ratio, ok := aspectRatios[req.AspectRatio]
	if !ok {
		ratio = "1:1"
	}

	payload := imagineRequest{
		Prompt:      prompt,
		Model:       "mj-v6",
		Version:     "v6",
		AspectRatio: ratio,
		Quality:     1,
	}

	var resp imagineResponse
	if err := provider.DoJSON(ctx, p.Client, http.MethodPost, p.BaseURL+"/imagine", p.headers(), payload, &resp); err != nil {
		return nil, fmt.Errorf("midjourney submit: %w", err)
	}
	if !resp.Success || resp.MessageID == "" {
		msg := resp.Error
		if msg == "" {
			msg = "response carried no message id"
		}
		return nil, errors.New("midjourney submit: " + msg)
	}

	return &provider.Submission{
		Handle: &provider.Handle{Provider: ProviderName, TaskID: resp.MessageID},
	}, nil
}

func (p *MidjourneyProvider) GetStatus(ctx context.Context, taskID string) (*provider.Status, error) {
	var resp messageResponse
	endpoint := fmt.Sprintf("%s/message/%s", p.BaseURL, url.PathEscape(taskID))
	if err := provider.DoJSON(ctx, p.Client, http.MethodGet, endpoint, p.headers(), nil, &resp); err != nil {
		return nil, fmt.Errorf("midjourney status: %w", err)
	}

	status := &provider.Status{
		State:    states.Map(resp.Status),
		RawState: resp.Status,
		Progress: resp.Progress,
	}
	switch status.State {
	case provider.StateCompleted:
		if resp.ImageURL == "" {
			// completed without an image is still rendering the upscale
			status.State = provider.StateProcessing
			return status, nil
		}
		status.Progress = 100
		status.ArtifactURLs = []string{resp.ImageURL}
	case provider.StateFailed:
		status.ErrorMessage = "Midjourney generation failed: " + resp.Error
		if resp.Error == "" {
			status.ErrorMessage = "Midjourney generation failed: Unknown error"
		}
	}
	return status, nil
}
