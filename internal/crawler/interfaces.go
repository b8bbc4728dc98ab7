package crawler

import (
	"context"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/music"
)

// PageFetcher fetches a URL and returns the parsed page. Implementations must
// not retry on behalf of the crawler.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*document.Document, error)
}

// Catalog resolves an album against the music catalog API. Errors matching
// ErrExtraction signal that the catalog answered but had no usable match;
// any other error is treated as a fetch failure.
type Catalog interface {
	FindAlbum(ctx context.Context, title, artist string) (music.CatalogAlbum, error)
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
