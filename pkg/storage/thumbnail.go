package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	// Decoders for provider output formats.
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/gift"
	_ "golang.org/x/image/webp"
)

const thumbnailJPEGQuality = 90

type ThumbnailResult struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
}

// GenerateThumbnail resizes the source to cover w x h, crops from the center and
// uploads a JPEG. Any failure falls back to the original URL with an empty Path.
func (s *Service) GenerateThumbnail(ctx context.Context, sourceURL string, w, h int) *ThumbnailResult {
	if w <= 0 {
		w = s.thumbnailSize
	}
	if h <= 0 {
		h = s.thumbnailSize
	}

	res, err := s.thumbnail(ctx, sourceURL, w, h)
	if err != nil {
		s.logger.Warn("STORAGE", "Thumbnail generation failed, using original", map[string]interface{}{
			"source": truncate(sourceURL, 120),
			"error":  err.Error(),
		})
		return &ThumbnailResult{URL: sourceURL}
	}
	return &ThumbnailResult{URL: res.URL, Path: res.Path}
}

func (s *Service) thumbnail(ctx context.Context, sourceURL string, w, h int) (*UploadResult, error) {
	data, _, err := s.fetcher.Resolve(ctx, Source{URL: sourceURL})
	if err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	encoded, err := renderThumbnail(src, w, h)
	if err != nil {
		return nil, err
	}
	return s.put(ctx, encoded, "image/jpeg", CategoryThumbnails)
}

func renderThumbnail(src image.Image, w, h int) ([]byte, error) {
	g := gift.New(gift.ResizeToFill(w, h, gift.LanczosResampling, gift.CenterAnchor))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
