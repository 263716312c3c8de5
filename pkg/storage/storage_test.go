package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-mediagen-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newLocalService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(NewLocalBackend(dir, "http://localhost:3000/"), nil, nil, 32), dir
}

func TestFetcher_Resolve(t *testing.T) {
	pngBytes := samplePNG(t, 4, 4)
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		src      Source
		wantType string
		wantErr  bool
	}{
		{name: "raw bytes", src: FromBytes(pngBytes, ""), wantType: "image/png"},
		{name: "data uri", src: FromString("data:image/png;base64," + encoded), wantType: "image/png"},
		{name: "bare base64", src: FromString(encoded), wantType: "image/png"},
		{name: "remote url", src: FromString(srv.URL + "/image.png"), wantType: "image/png"},
		{name: "remote 404", src: FromString(srv.URL + "/missing"), wantErr: true},
		{name: "data uri without base64", src: FromString("data:image/png,abc"), wantErr: true},
		{name: "garbage", src: FromString("not base64 !!"), wantErr: true},
		{name: "empty", src: Source{}, wantErr: true},
	}

	f := NewFetcher(srv.Client())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, contentType, err := f.Resolve(context.Background(), tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pngBytes, data)
			assert.Equal(t, tt.wantType, contentType)
		})
	}
}

func TestService_UploadImage_Local(t *testing.T) {
	svc, dir := newLocalService(t)
	pngBytes := samplePNG(t, 8, 8)

	res, err := svc.UploadImage(context.Background(), FromBytes(pngBytes, ""), CategoryGenerated)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Path, "generated/"))
	assert.True(t, strings.HasSuffix(res.Filename, ".png"))
	assert.Equal(t, "http://localhost:3000/uploads/"+res.Path, res.URL)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(res.Path)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestService_UploadImage_RejectsNonImage(t *testing.T) {
	svc, _ := newLocalService(t)

	_, err := svc.UploadImage(context.Background(), FromBytes([]byte("plain text body"), ""), CategoryGenerated)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeStorageUpload))
}

// sampleMP4 is a minimal ISO BMFF header that sniffs as video/mp4.
func sampleMP4() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypmp42\x00\x00\x00\x00mp42isom")...)
}

func TestService_UploadVideo_LocalFile(t *testing.T) {
	svc, dir := newLocalService(t)
	importDir := t.TempDir()
	svc.WithVideoImportDir(importDir)

	src := filepath.Join(importDir, "clip.mp4")
	require.NoError(t, os.WriteFile(src, sampleMP4(), 0o644))

	res, err := svc.UploadVideo(context.Background(), src, VideoOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Path, "videos/"))
	assert.True(t, strings.HasSuffix(res.Filename, ".mp4"))

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(res.Path)))
	assert.NoError(t, err)
}

func TestService_UploadVideo_Rejects(t *testing.T) {
	importDir := t.TempDir()
	outside := t.TempDir()

	textFile := filepath.Join(importDir, "notes.mp4")
	require.NoError(t, os.WriteFile(textFile, []byte("DB_PASSWORD=hunter2\n"), 0o644))
	secret := filepath.Join(outside, "clip.mp4")
	require.NoError(t, os.WriteFile(secret, sampleMP4(), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A lying Content-Type must not make text pass as video.
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("just some text"))
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		importDir string
		source    string
	}{
		{name: "text file inside import dir", importDir: importDir, source: textFile},
		{name: "path outside import dir", importDir: importDir, source: secret},
		{name: "relative escape", importDir: importDir, source: filepath.Join(importDir, "..", filepath.Base(outside), "clip.mp4")},
		{name: "local paths disabled", source: filepath.Join(importDir, "clip.mp4")},
		{name: "remote text with video header", importDir: importDir, source: srv.URL + "/clip.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			svc := NewService(NewLocalBackend(dir, "http://localhost:3000"), NewFetcher(srv.Client()), nil, 32)
			if tt.importDir != "" {
				svc.WithVideoImportDir(tt.importDir)
			}

			_, err := svc.UploadVideo(context.Background(), tt.source, VideoOptions{})
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.CodeStorageUpload))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestService_GenerateThumbnail(t *testing.T) {
	pngBytes := samplePNG(t, 64, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	dir := t.TempDir()
	svc := NewService(NewLocalBackend(dir, "http://cdn.local"), NewFetcher(srv.Client()), nil, 16)

	thumb := svc.GenerateThumbnail(context.Background(), srv.URL+"/source.png", 0, 0)
	require.NotEmpty(t, thumb.Path)
	assert.True(t, strings.HasPrefix(thumb.URL, "http://cdn.local/uploads/thumbnails/"))

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(thumb.Path)))
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestService_GenerateThumbnail_FallsBackToOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "definitely not an image")
	}))
	defer srv.Close()

	svc := NewService(NewLocalBackend(t.TempDir(), "http://cdn.local"), NewFetcher(srv.Client()), nil, 16)

	original := srv.URL + "/broken.png"
	thumb := svc.GenerateThumbnail(context.Background(), original, 16, 16)
	assert.Equal(t, original, thumb.URL)
	assert.Empty(t, thumb.Path)
}

func TestService_DeleteImage_BestEffort(t *testing.T) {
	svc, dir := newLocalService(t)

	res, err := svc.UploadImage(context.Background(), FromBytes(samplePNG(t, 2, 2), ""), CategoryOriginals)
	require.NoError(t, err)

	svc.DeleteImage(context.Background(), res.Path)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(res.Path)))
	assert.True(t, os.IsNotExist(err))

	// Already gone and empty paths are both tolerated.
	assert.NotPanics(t, func() {
		svc.DeleteImage(context.Background(), res.Path)
		svc.DeleteImage(context.Background(), "")
	})
}

func TestLocalBackend_StaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(dir, "http://x")

	_, err := b.Put(context.Background(), "../../escape.png", []byte("x"), "image/png")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "escape.png"))
	assert.NoError(t, err)
}

func TestCDNBackend_PutAndDelete(t *testing.T) {
	var gotPublicID, gotAuth, deletedID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodPost:
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			gotPublicID = r.FormValue("public_id")
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"secure_url":"https://media.example/`+gotPublicID+`","public_id":"`+gotPublicID+`"}`)
		case http.MethodDelete:
			deletedID = r.URL.Query().Get("public_id")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	b, err := NewCDNBackend(srv.URL, "secret", "mediagen", srv.Client())
	require.NoError(t, err)

	url, err := b.Put(context.Background(), "generated/a.png", []byte("data"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "mediagen/generated/a.png", gotPublicID)
	assert.Equal(t, "https://media.example/mediagen/generated/a.png", url)
	assert.Equal(t, "Bearer secret", gotAuth)

	require.NoError(t, b.Delete(context.Background(), "generated/a.png"))
	assert.Equal(t, "mediagen/generated/a.png", deletedID)
}

func TestCDNBackend_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer srv.Close()

	b, err := NewCDNBackend(srv.URL, "bad", "", srv.Client())
	require.NoError(t, err)

	_, err = b.Put(context.Background(), "generated/a.png", []byte("data"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}
