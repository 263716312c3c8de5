package midjourney

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-mediagen-be/pkg/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMidjourneyProvider_Submit(t *testing.T) {
	var got imagineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/imagine", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true,"messageId":"mj-1"}`))
	}))
	defer srv.Close()

	p := NewMidjourneyProvider(srv.URL, "key")
	p.Client = srv.Client()

	sub, err := p.Submit(context.Background(), provider.Request{Prompt: "castle", NegativePrompt: "people", AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.Equal(t, "mj-1", sub.Handle.TaskID)
	assert.Equal(t, "castle --no people", got.Prompt)
	assert.Equal(t, "16:9", got.AspectRatio)
	assert.Equal(t, "mj-v6", got.Model)
}

func TestMidjourneyProvider_SubmitNotAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"banned prompt"}`))
	}))
	defer srv.Close()

	p := NewMidjourneyProvider(srv.URL, "key")
	p.Client = srv.Client()

	_, err := p.Submit(context.Background(), provider.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned prompt")
}

func TestMidjourneyProvider_GetStatus(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantState provider.State
		wantURL   string
		wantMsg   string
	}{
		{name: "in progress", response: `{"status":"processing","progress":30}`, wantState: provider.StateProcessing},
		{name: "completed", response: `{"status":"completed","imageUrl":"https://mj/1.png"}`, wantState: provider.StateCompleted, wantURL: "https://mj/1.png"},
		{name: "completed without image", response: `{"status":"completed"}`, wantState: provider.StateProcessing},
		{name: "failed", response: `{"status":"failed","error":"timeout"}`, wantState: provider.StateFailed, wantMsg: "Midjourney generation failed: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/message/mj-1", r.URL.Path)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			p := NewMidjourneyProvider(srv.URL, "key")
			p.Client = srv.Client()

			status, err := p.GetStatus(context.Background(), "mj-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, status.State)
			assert.Equal(t, tt.wantMsg, status.ErrorMessage)
			if tt.wantURL != "" {
				assert.Equal(t, []string{tt.wantURL}, status.ArtifactURLs)
			}
		})
	}
}
