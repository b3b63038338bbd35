package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/smartreview/platform/pkg/common/logger"
)

// Uploader stores an object and knows its public address. The production
// implementation is backed by a cloud bucket; tests swap in a stub.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
}

// Mirrorer copies remote product images into owned object storage so pages
// never hotlink marketplace CDNs. Every failure falls back to the source URL.
type Mirrorer struct {
	uploader  Uploader
	client    *http.Client
	keyPrefix string
	maxBytes  int64
	maxItems  int
}

func NewMirrorer(uploader Uploader, keyPrefix string, maxBytes int64) *Mirrorer {
	return &Mirrorer{
		uploader:  uploader,
		client:    &http.Client{Timeout: 30 * time.Second},
		keyPrefix: strings.Trim(keyPrefix, "/"),
		maxBytes:  maxBytes,
		maxItems:  4,
	}
}

// Mirror uploads up to maxItems of the given URLs and returns their public
// addresses. When storage is unconfigured, or every upload fails, the
// original URLs are returned truncated to the same cap.
func (m *Mirrorer) Mirror(ctx context.Context, urls []string, keyScope string) []string {
	if m == nil {
		if len(urls) > 4 {
			return urls[:4]
		}
		return urls
	}
	limit := m.maxItems
	if len(urls) < limit {
		limit = len(urls)
	}
	if m.uploader == nil {
		return urls[:limit]
	}

	var mirrored []string
	for _, src := range urls {
		if len(mirrored) >= m.maxItems {
			break
		}
		publicURL, err := m.mirrorOne(ctx, src, keyScope)
		if err != nil {
			logger.Log.WithError(err).WithField("url", src).Warn("Image mirror failed, keeping source URL")
			continue
		}
		mirrored = append(mirrored, publicURL)
	}
	if len(mirrored) == 0 {
		return urls[:limit]
	}
	return mirrored
}

func (m *Mirrorer) mirrorOne(ctx context.Context, src, keyScope string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image body")
	}
	if int64(len(data)) > m.maxBytes {
		return "", fmt.Errorf("image exceeds %d bytes", m.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	ext := extensionFor(contentType, src)
	sum := sha1.Sum([]byte(src))
	key := path.Join(m.keyPrefix, keyScope, hex.EncodeToString(sum[:])+ext)

	if err := m.uploader.Upload(ctx, key, contentType, data); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return m.uploader.PublicURL(key), nil
}

func extensionFor(contentType, src string) string {
	switch {
	case strings.Contains(contentType, "image/png"):
		return ".png"
	case strings.Contains(contentType, "image/webp"):
		return ".webp"
	case strings.Contains(contentType, "image/gif"):
		return ".gif"
	case strings.Contains(contentType, "image/jpeg"):
		return ".jpg"
	}
	if parsed, err := url.Parse(src); err == nil {
		switch strings.ToLower(path.Ext(parsed.Path)) {
		case ".png":
			return ".png"
		case ".webp":
			return ".webp"
		case ".gif":
			return ".gif"
		case ".jpg", ".jpeg":
			return ".jpg"
		}
	}
	return ".jpg"
}
