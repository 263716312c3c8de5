package runway

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
	ProviderName   = "runway"
	DefaultBaseURL = "https://api.kie.ai/api/v1/runway"
)

var states = provider.NewStateMap(
	[]string{"success"},
	[]string{"fail"},
)

var stageProgress = map[string]int{
	"wait":       10,
	"queueing":   10,
	"generating": 50,
	"success":    100,
}

var errorMessages = map[int]string{
	401: "Invalid API key. Please check your authentication credentials.",
	404: "API endpoint not found. Please verify the request URL.",
	422: "Invalid parameters. Please check your request data and try again.",
	451: "Cannot access the reference image. Please check the image URL and permissions.",
	455: "Service temporarily unavailable. Please try again later.",
	500: "Server error occurred. Please contact support if the problem persists.",
}

// ErrorMessage turns a Runway API code into a readable message.
func ErrorMessage(code int, msg string) string {
	if m, ok := errorMessages[code]; ok {
		return m
	}
	if msg != "" {
		return msg
	}
	return "Unknown error occurred"
}

// RunwayProvider generates short videos through the kie.ai Runway API.
type RunwayProvider struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	Client      *http.Client
}

var _ provider.AsyncProvider = &RunwayProvider{}

func NewRunwayProvider(baseURL, apiKey, callbackURL string) *RunwayProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RunwayProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		CallbackURL: callbackURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	Quality     string `json:"quality"`
	AspectRatio string `json:"aspectRatio"`
	WaterMark   string `json:"waterMark"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CallBackURL string `json:"callBackUrl,omitempty"`
}

type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordData struct {
	TaskID    string `json:"taskId"`
	State     string `json:"state"`
	FailMsg   string `json:"failMsg"`
	VideoInfo *struct {
		VideoURL string `json:"videoUrl"`
		ImageURL string `json:"imageUrl"`
	} `json:"videoInfo"`
}

func (p *RunwayProvider) Name() string        { return ProviderName }
func (p *RunwayProvider) Mode() provider.Mode { return provider.ModeAsync }

func (p *RunwayProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.APIKey}
}

func (p *RunwayProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	payload := generateRequest{
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		Quality:     req.Quality,
		AspectRatio: req.AspectRatio,
		ImageURL:    req.InputImage,
		CallBackURL: p.CallbackURL,
	}

	var resp envelope[generateData]
	if err := provider.DoJSON(ctx, p.Client, http.MethodPost, p.BaseURL+"/generate", p.headers(), payload, &resp); err != nil {
		var httpErr *provider.HTTPError
		if errors.As(err, &httpErr) {
			return nil, fmt.Errorf("runway submit: %s", ErrorMessage(httpErr.StatusCode, ""))
		}
		return nil, fmt.Errorf("runway submit: %w", err)
	}
	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("runway API error (%d): %s", resp.Code, ErrorMessage(resp.Code, resp.Msg))
	}
	if resp.Data.TaskID == "" {
		return nil, errors.New("runway submit: response carried no task id")
	}

	return &provider.Submission{
		Handle: &provider.Handle{Provider: ProviderName, TaskID: resp.Data.TaskID},
	}, nil
}

// GetStatus never fabricates a result: a transport or API error is returned as an error and
// the polling engine decides what to do with it.
func (p *RunwayProvider) GetStatus(ctx context.Context, taskID string) (*provider.Status, error) {
	var resp envelope[recordData]
	endpoint := fmt.Sprintf("%s/record-detail?taskId=%s", p.BaseURL, url.QueryEscape(taskID))
	if err := provider.DoJSON(ctx, p.Client, http.MethodGet, endpoint, p.headers(), nil, &resp); err != nil {
		return nil, fmt.Errorf("runway status: %w", err)
	}
	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("runway API error (%d): %s", resp.Code, ErrorMessage(resp.Code, resp.Msg))
	}

	raw := resp.Data.State
	status := &provider.Status{
		State:    states.Map(raw),
		RawState: raw,
		Progress: stageProgress[strings.ToLower(raw)],
	}

	switch status.State {
	case provider.StateCompleted:
		if resp.Data.VideoInfo == nil || resp.Data.VideoInfo.VideoURL == "" {
			status.State = provider.StateFailed
			status.ErrorMessage = "Runway reported success without a video url"
			return status, nil
		}
		status.ArtifactURLs = []string{resp.Data.VideoInfo.VideoURL}
	case provider.StateFailed:
		status.ErrorMessage = resp.Data.FailMsg
		if status.ErrorMessage == "" {
			status.ErrorMessage = "Video generation failed"
		}
	}
	return status, nil
}
