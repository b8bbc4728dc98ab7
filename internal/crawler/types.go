package crawler

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/store"
)

// DefaultSiteURL is the site crawled when Deps.SiteURL is empty.
const DefaultSiteURL = "https://rateyourmusic.com"

// Deps carries the collaborators shared by every node of a crawl run. The
// store handle is opened at run start and closed by the caller at run end.
type Deps struct {
	Pages   PageFetcher
	Catalog Catalog
	Store   store.Repository
	Logger  *zap.Logger

	// SiteURL is the scheme://host prefix used to build profile and listing
	// URLs.
	SiteURL string
	// ConcurrentDependencies resolves an album's artist and tracks in
	// parallel. Ledger order is the same either way.
	ConcurrentDependencies bool
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) siteURL() string {
	if d.SiteURL == "" {
		return DefaultSiteURL
	}
	return d.SiteURL
}

// Node kinds, used as metric labels and in log fields.
const (
	KindAlbum      = "album"
	KindArtist     = "artist"
	KindTracks     = "tracks"
	KindProfile    = "profile"
	KindReviewPage = "review_page"
)
