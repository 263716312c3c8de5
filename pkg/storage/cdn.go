package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// CDNBackend uploads to a managed media CDN through an authenticated multipart endpoint.
// The endpoint answers {"secure_url": "...", "public_id": "..."}; deletes go to
// DELETE {uploadURL}?public_id=<path>.
type CDNBackend struct {
	uploadURL string
	apiKey    string
	folder    string
	client    *http.Client
}

func NewCDNBackend(uploadURL, apiKey, folder string, client *http.Client) (*CDNBackend, error) {
	if uploadURL == "" {
		return nil, fmt.Errorf("cdn upload url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &CDNBackend{
		uploadURL: strings.TrimRight(uploadURL, "/"),
		apiKey:    apiKey,
		folder:    folder,
		client:    client,
	}, nil
}

func (b *CDNBackend) Name() string { return "cdn" }

type cdnUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (b *CDNBackend) publicID(objectPath string) string {
	if b.folder == "" {
		return objectPath
	}
	return path.Join(b.folder, objectPath)
}

func (b *CDNBackend) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", path.Base(objectPath))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	_ = writer.WriteField("public_id", b.publicID(objectPath))
	_ = writer.WriteField("content_type", contentType)
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	b.authorize(req)

	res, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cdn upload: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	var parsed cdnUploadResponse
	_ = json.Unmarshal(raw, &parsed)

	if res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("cdn upload failed (%d): %s", res.StatusCode, msg)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("cdn upload returned no url")
	}
	return parsed.SecureURL, nil
}

func (b *CDNBackend) Delete(ctx context.Context, objectPath string) error {
	target := b.uploadURL + "?public_id=" + url.QueryEscape(b.publicID(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	b.authorize(req)

	res, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("cdn delete: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("cdn delete failed (%d)", res.StatusCode)
	}
	return nil
}

func (b *CDNBackend) authorize(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
}
