// Package storage persists generated artifacts behind a pluggable backend
// (local disk, Google Cloud Storage or a managed media CDN).
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/metrics"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryOriginals  Category = "originals"
	CategoryGenerated  Category = "generated"
	CategoryThumbnails Category = "thumbnails"
	CategoryVideos     Category = "videos"
)

// Backend stores opaque objects addressed by a slash separated path.
type Backend interface {
	Name() string
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

type UploadResult struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

type VideoOptions struct {
	Category Category
}

type Service struct {
	backend       Backend
	fetcher       *Fetcher
	logger        logger.ILogger
	thumbnailSize int

	videoImportDir string
}

func NewService(backend Backend, fetcher *Fetcher, log logger.ILogger, thumbnailSize int) *Service {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if thumbnailSize <= 0 {
		thumbnailSize = 300
	}
	return &Service{
		backend:       backend,
		fetcher:       fetcher,
		logger:        log,
		thumbnailSize: thumbnailSize,
	}
}

func (s *Service) BackendName() string {
	return s.backend.Name()
}

func (s *Service) ThumbnailSize() int {
	return s.thumbnailSize
}

// UploadImage normalizes src to bytes and stores it under category with a fresh uuid name.
func (s *Service) UploadImage(ctx context.Context, src Source, category Category) (*UploadResult, error) {
	if category == "" {
		category = CategoryGenerated
	}
	data, contentType, err := s.fetcher.Resolve(ctx, src)
	if err != nil {
		s.record("upload", err)
		return nil, apperror.StorageUpload(err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		err := fmt.Errorf("source is not an image (%s)", contentType)
		s.record("upload", err)
		return nil, apperror.StorageUpload(err)
	}
	return s.put(ctx, data, contentType, category)
}

// UploadVideo accepts a remote URL, or a path inside the video import directory.
// The bytes themselves must sniff as video.
func (s *Service) UploadVideo(ctx context.Context, localPathOrURL string, opts VideoOptions) (*UploadResult, error) {
	category := opts.Category
	if category == "" {
		category = CategoryVideos
	}

	var (
		data []byte
		err  error
	)
	if isRemote(localPathOrURL) {
		data, _, err = s.fetcher.Resolve(ctx, Source{URL: localPathOrURL})
	} else {
		data, err = s.readImport(localPathOrURL)
	}
	if err != nil {
		s.record("upload", err)
		return nil, apperror.StorageUpload(err)
	}

	contentType := sniffVideo(data)
	if !strings.HasPrefix(contentType, "video/") {
		err := fmt.Errorf("source is not a video (%s)", contentType)
		s.record("upload", err)
		return nil, apperror.StorageUpload(err)
	}
	return s.put(ctx, data, contentType, category)
}

// WithVideoImportDir lets UploadVideo read local files under dir. Without it
// local paths are rejected.
func (s *Service) WithVideoImportDir(dir string) *Service {
	s.videoImportDir = dir
	return s
}

func (s *Service) readImport(localPath string) ([]byte, error) {
	if s.videoImportDir == "" {
		return nil, fmt.Errorf("local video sources are disabled")
	}
	root, err := filepath.Abs(s.videoImportDir)
	if err != nil {
		return nil, err
	}
	target, err := filepath.Abs(localPath)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("local video source %q is outside the import directory", localPath)
	}
	return os.ReadFile(target)
}

// DeleteImage removes an object. Failures are logged and swallowed.
func (s *Service) DeleteImage(ctx context.Context, objectPath string) {
	if objectPath == "" {
		return
	}
	err := s.backend.Delete(ctx, objectPath)
	s.record("delete", err)
	if err != nil {
		s.logger.Warn("STORAGE", "Failed to delete object", map[string]interface{}{
			"backend": s.backend.Name(),
			"path":    objectPath,
			"error":   err.Error(),
		})
	}
}

func (s *Service) put(ctx context.Context, data []byte, contentType string, category Category) (*UploadResult, error) {
	filename := uuid.New().String() + extensionFor(contentType)
	objectPath := path.Join(string(category), filename)

	url, err := s.backend.Put(ctx, objectPath, data, contentType)
	s.record("upload", err)
	if err != nil {
		s.logger.Error("STORAGE", "Upload failed", map[string]interface{}{
			"backend": s.backend.Name(),
			"path":    objectPath,
			"error":   err.Error(),
		})
		return nil, apperror.StorageUpload(err)
	}

	return &UploadResult{URL: url, Path: objectPath, Filename: filename}, nil
}

func (s *Service) record(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(s.backend.Name(), operation, result).Inc()
}
