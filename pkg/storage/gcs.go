package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsUploadTimeout = 50 * time.Second

type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSBackend uses application default credentials unless credentialsFile is set.
func NewGCSBackend(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSBackend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSBackend{client: client, bucket: bucket, prefix: prefix}, nil
}

func (b *GCSBackend) Name() string { return "gcs" }

func (b *GCSBackend) objectName(objectPath string) string {
	if b.prefix == "" {
		return objectPath
	}
	return path.Join(b.prefix, objectPath)
}

func (b *GCSBackend) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsUploadTimeout)
	defer cancel()

	name := b.objectName(objectPath)
	wc := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, name), nil
}

func (b *GCSBackend) Delete(ctx context.Context, objectPath string) error {
	err := b.client.Bucket(b.bucket).Object(b.objectName(objectPath)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}
