package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ai-mediagen-be/internal/config"
	"ai-mediagen-be/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageBackend_LocalURLsAreServed(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "bare origin", baseURL: "http://localhost:3000"},
		{name: "trailing slash", baseURL: "http://localhost:3000/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			backend, err := newStorageBackend(context.Background(), config.StorageConfig{Backend: "local", LocalDir: dir}, tt.baseURL)
			require.NoError(t, err)

			publicURL, err := backend.Put(context.Background(), "generated/a.png", []byte("png bytes"), "image/png")
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:3000/uploads/generated/a.png", publicURL)

			// Same static route the HTTP server mounts.
			app := fiber.New()
			app.Static(storage.LocalURLPrefix, dir)

			u, err := url.Parse(publicURL)
			require.NoError(t, err)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, u.Path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "png bytes", string(body))
		})
	}
}

func TestNewStorageBackend_UnknownBackend(t *testing.T) {
	_, err := newStorageBackend(context.Background(), config.StorageConfig{Backend: "ftp"}, "http://localhost:3000")
	assert.Error(t, err)
}
