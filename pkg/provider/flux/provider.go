package flux

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
	ProviderName   = "flux"
	DefaultBaseURL = "https://api.bfl.ai/v1"
)

var states = provider.NewStateMap(
	[]string{"Ready"},
	[]string{"Error", "Failed", "Content Moderated", "Request Moderated", "Task not found"},
)

// FluxProvider talks to the Black Forest Labs API. Jobs are accepted with an id and polled
// through get_result.
type FluxProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

var _ provider.AsyncProvider = &FluxProvider{}

func NewFluxProvider(baseURL, apiKey string) *FluxProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FluxProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type submitRequest struct {
	Prompt      string `json:"prompt"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	InputImage  string `json:"input_image,omitempty"`
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type resultResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error"`
	Result   *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

func (p *FluxProvider) Name() string        { return ProviderName }
func (p *FluxProvider) Mode() provider.Mode { return provider.ModeAsync }

func (p *FluxProvider) headers() map[string]string {
	return map[string]string{"x-key": p.APIKey}
}

func (p *FluxProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	payload := submitRequest{
		Prompt:     req.Prompt,
		Seed:       req.Seed,
		InputImage: req.InputImage,
	}
	// Kontext takes an aspect ratio, the pro endpoints take explicit dimensions.
	if strings.Contains(req.ModelID, "kontext") {
		payload.AspectRatio = req.AspectRatio
	} else {
		payload.Width, payload.Height = req.Width, req.Height
	}

	var resp submitResponse
	endpoint := fmt.Sprintf("%s/%s", p.BaseURL, req.ModelID)
	if err := provider.DoJSON(ctx, p.Client, http.MethodPost, endpoint, p.headers(), payload, &resp); err != nil {
		return nil, fmt.Errorf("flux submit: %w", err)
	}
	if resp.ID == "" {
		return nil, errors.New("flux submit: response carried no task id")
	}

	return &provider.Submission{
		Handle: &provider.Handle{Provider: ProviderName, TaskID: resp.ID},
	}, nil
}

func (p *FluxProvider) GetStatus(ctx context.Context, taskID string) (*provider.Status, error) {
	var resp resultResponse
	endpoint := fmt.Sprintf("%s/get_result?id=%s", p.BaseURL, url.QueryEscape(taskID))
	if err := provider.DoJSON(ctx, p.Client, http.MethodGet, endpoint, p.headers(), nil, &resp); err != nil {
		return nil, fmt.Errorf("flux status: %w", err)
	}

	status := &provider.Status{
		State:    states.Map(resp.Status),
		RawState: resp.Status,
		Progress: int(resp.Progress * 100),
	}

	switch status.State {
	case provider.StateCompleted:
		status.Progress = 100
		if resp.Result == nil || resp.Result.Sample == "" {
			status.State = provider.StateFailed
			status.ErrorMessage = "No result received from Flux API"
			return status, nil
		}
		status.ArtifactURLs = []string{resp.Result.Sample}
	case provider.StateFailed:
		status.ErrorMessage = resp.Error
		if status.ErrorMessage == "" {
			status.ErrorMessage = fmt.Sprintf("Flux generation failed: %s", resp.Status)
		}
	}
	return status, nil
}
