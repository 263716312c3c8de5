package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxSourceBytes = 100 << 20 // 100 MB

// Source is anything an artifact can arrive as: a remote URL, a data URI,
// a bare base64 string (all via URL) or raw bytes (Data).
type Source struct {
	URL      string
	Data     []byte
	MimeType string
}

func FromBytes(data []byte, mimeType string) Source {
	return Source{Data: data, MimeType: mimeType}
}

func FromString(s string) Source {
	return Source{URL: s}
}

// Fetcher turns a Source into bytes.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: client}
}

func (f *Fetcher) Resolve(ctx context.Context, src Source) ([]byte, string, error) {
	switch {
	case len(src.Data) > 0:
		return src.Data, sniffContentType(src.Data, src.MimeType), nil
	case strings.HasPrefix(src.URL, "data:"):
		return decodeDataURI(src.URL)
	case isRemote(src.URL):
		return f.download(ctx, src.URL)
	case src.URL != "":
		data, err := decodeBase64(src.URL)
		if err != nil {
			return nil, "", fmt.Errorf("source is neither a URL nor base64: %w", err)
		}
		return data, sniffContentType(data, src.MimeType), nil
	default:
		return nil, "", fmt.Errorf("empty source")
	}
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch source: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch source: received status code %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxSourceBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read source: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, "", fmt.Errorf("source larger than %d bytes", maxSourceBytes)
	}

	headerType := res.Header.Get("Content-Type")
	if i := strings.Index(headerType, ";"); i >= 0 {
		headerType = headerType[:i]
	}
	return data, sniffContentType(data, strings.TrimSpace(headerType)), nil
}

// decodeDataURI handles data:[<mime>][;base64],<payload>.
func decodeDataURI(uri string) ([]byte, string, error) {
	comma := strings.Index(uri, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data uri")
	}
	meta := strings.TrimPrefix(uri[:comma], "data:")
	payload := uri[comma+1:]

	declared := ""
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		if i == 0 {
			declared = part
			continue
		}
		if part == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, "", fmt.Errorf("data uri must be base64 encoded")
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return data, sniffContentType(data, declared), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// sniffContentType prefers what the bytes say; a declared type only fills in
// when sniffing is inconclusive.
func sniffContentType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if sniffed == "application/octet-stream" || strings.HasPrefix(sniffed, "text/plain") {
		if declared != "" {
			return declared
		}
	}
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}

// sniffVideo trusts only the bytes; a declared or served type cannot make text pass as video.
func sniffVideo(data []byte) string {
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
