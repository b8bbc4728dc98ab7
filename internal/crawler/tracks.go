package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/music"
)

var errNoTracks = errors.New("catalog album has no tracks")

// Tracks resolves an album's tracks and audio features from the catalog. It
// is recorded under the parent album's URL and is persisted as part of the
// album, so it never has a store ID of its own.
type Tracks struct {
	state  State
	deps   Deps
	title  string
	artist string
	data   music.CatalogAlbum
}

// NewTracks builds a Tracks node for the album at albumURL.
func NewTracks(deps Deps, albumURL, title, artist string) *Tracks {
	t := &Tracks{deps: deps, title: title, artist: artist}
	t.state = newState(KindTracks, albumURL, "spotify tracks")
	return t
}

// State implements Scrapable.
func (t *Tracks) State() *State { return &t.state }

// Catalog returns the resolved catalog album.
func (t *Tracks) Catalog() music.CatalogAlbum { return t.data }

// Existing implements Persistable. Tracks are deduplicated with their album.
func (t *Tracks) Existing(context.Context) (int64, bool, error) { return 0, false, nil }

// Extract implements Extractable.
func (t *Tracks) Extract(ctx context.Context) error {
	if t.deps.Catalog == nil {
		return extractionFailure(errors.New("no catalog configured"))
	}
	data, err := t.deps.Catalog.FindAlbum(ctx, t.title, t.artist)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			return err
		}
		return fetchFailure(err)
	}
	if len(data.Tracks) == 0 {
		return extractionFailure(errNoTracks)
	}
	t.data = data
	return nil
}

// ScrapeDependencies implements DependencyResolvable; tracks have none.
func (t *Tracks) ScrapeDependencies(context.Context) error { return nil }

// Save implements Persistable. The parent album writes the tracks.
func (t *Tracks) Save(context.Context) (int64, error) { return 0, nil }

// PrintInfo implements Scrapable.
func (t *Tracks) PrintInfo(logger *zap.Logger) {
	logger.Info("tracks",
		zap.String("album", t.title),
		zap.String("spotify_id", t.data.SpotifyID),
		zap.Int("count", len(t.data.Tracks)),
	)
}
