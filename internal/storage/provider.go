// Package storage defines the blob archive used for raw crawled pages. The
// memory, local, and gcs subpackages implement it.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/JakeFAU/music-crawler/internal/hash/sha256"
)

// BlobStore writes an object and returns a URI identifying where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// PagePath is the archive object name for a page fetched from pageURL during
// run runID: <prefix>/<runID>/<sha256(url)>.html.
func PagePath(prefix, runID, pageURL string) string {
	key := sha256.New().HashString(pageURL)
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if runID != "" {
		parts = append(parts, runID)
	}
	parts = append(parts, key+".html")
	return path.Join(parts...)
}
