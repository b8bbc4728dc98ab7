package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// Album page selectors.
const (
	albumTitleSelector       = "div.album_title"
	albumArtistSelector      = "table.album_info span[itemprop=byArtist] a.artist"
	albumReleaseSelector     = "table.album_info td.release_date"
	albumRatingSelector      = "table.album_info span.avg_rating"
	albumRatingCountSelector = "table.album_info span.num_ratings"
	albumOverallRankSelector = "table.album_info td.rank_overall"
	albumYearRankSelector    = "table.album_info td.rank_year"
	albumReviewCountSelector = "div.section_reviews span.review_count"
	albumListCountSelector   = "div.section_lists span.list_count"
	albumIssuesSelector      = "div.section_issues div.issue_info"
)

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// Album scrapes an RYM release page. Its artist and catalog tracks must both
// resolve before the album is saved; if either fails nothing is written.
type Album struct {
	state      State
	deps       Deps
	data       music.Album
	artistURL  string
	artistName string

	artist *Artist
	tracks *Tracks
}

// NewAlbum builds an Album node for url.
func NewAlbum(deps Deps, url string) *Album {
	a := &Album{deps: deps}
	a.state = newState(KindAlbum, url, "RYM album")
	a.data.URL = url
	return a
}

// State implements Scrapable.
func (a *Album) State() *State { return &a.state }

// Record returns the album as extracted, saved, or loaded from the store.
func (a *Album) Record() music.Album { return a.data }

// Existing implements Persistable.
func (a *Album) Existing(ctx context.Context) (int64, bool, error) {
	rec, err := a.deps.Store.FindAlbum(ctx, a.state.URL)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find album: %w", err)
	}
	a.data = rec
	return rec.ID, true, nil
}

// Extract implements Extractable.
func (a *Album) Extract(ctx context.Context) error {
	doc, err := a.deps.Pages.Fetch(ctx, a.state.URL)
	if err != nil {
		return fetchFailure(err)
	}
	if err := a.extract(doc); err != nil {
		return extractionFailure(err)
	}
	return nil
}

func (a *Album) extract(doc *document.Document) error {
	title, err := doc.Element(albumTitleSelector, "album title", true)
	if err != nil {
		return err
	}
	a.data.Title = title.Text()

	artist, err := doc.Element(albumArtistSelector, "artist link", true)
	if err != nil {
		return err
	}
	a.artistURL = artist.Href()
	a.artistName = artist.Text()
	if a.artistURL == "" {
		return fmt.Errorf("artist link has no href at %s", doc.URL())
	}

	release, err := doc.Element(albumReleaseSelector, "release date", false)
	if err != nil {
		return err
	}
	a.data.ReleaseYear = parseYear(release.Text())

	rating, err := doc.Element(albumRatingSelector, "average rating", false)
	if err != nil {
		return err
	}
	if a.data.Rating, err = rating.Number(); err != nil {
		return fmt.Errorf("average rating: %w", err)
	}

	counts := []struct {
		selector    string
		description string
		dest        *int
	}{
		{albumRatingCountSelector, "rating count", &a.data.RatingCount},
		{albumOverallRankSelector, "overall rank", &a.data.OverallRank},
		{albumYearRankSelector, "year rank", &a.data.YearRank},
		{albumReviewCountSelector, "review count", &a.data.ReviewCount},
		{albumListCountSelector, "list count", &a.data.ListCount},
	}
	for _, c := range counts {
		if *c.dest, err = optionalInt(doc, c.selector, c.description); err != nil {
			return err
		}
	}

	issues, err := doc.List(albumIssuesSelector, "issues", false)
	if err != nil {
		return err
	}
	a.data.IssueCount = len(issues)
	return nil
}

// ScrapeDependencies implements DependencyResolvable. The artist and tracks
// are write-disjoint, so they may run concurrently; their ledgers are merged
// artist first regardless. A panic in either dependency becomes that node's
// failure.
func (a *Album) ScrapeDependencies(ctx context.Context) error {
	a.artist = NewArtist(a.deps, a.artistURL)
	a.tracks = NewTracks(a.deps, a.state.URL, a.data.Title, a.artistName)

	var artistErr, tracksErr error
	if a.deps.ConcurrentDependencies {
		var g errgroup.Group
		g.Go(func() error {
			artistErr = scrapeRecovering(ctx, a.artist)
			return nil
		})
		g.Go(func() error {
			tracksErr = scrapeRecovering(ctx, a.tracks)
			return nil
		})
		_ = g.Wait()
	} else {
		// A failed artist dooms the album, so the catalog lookup is skipped.
		artistErr = scrapeRecovering(ctx, a.artist)
		if artistErr == nil {
			tracksErr = scrapeRecovering(ctx, a.tracks)
		}
	}

	a.state.Ledger.Merge(a.artist.State().Ledger)
	a.state.Ledger.Merge(a.tracks.State().Ledger)

	if err := errors.Join(artistErr, tracksErr); err != nil {
		return fmt.Errorf("album dependencies: %w", err)
	}
	return nil
}

// Save implements Persistable.
func (a *Album) Save(ctx context.Context) (int64, error) {
	if a.artist == nil || !a.artist.State().Succeeded || a.artist.State().PersistedID == 0 {
		return 0, fmt.Errorf("album artist unresolved: %w", store.ErrMissingReference)
	}
	if a.tracks == nil || !a.tracks.State().Succeeded {
		return 0, errors.New("album tracks unresolved")
	}
	a.data.ArtistID = a.artist.State().PersistedID
	a.data.Catalog = a.tracks.Catalog()
	if a.data.ReleaseYear == 0 {
		a.data.ReleaseYear = a.data.Catalog.ReleaseYear
	}
	saved, err := a.deps.Store.SaveAlbum(ctx, a.data)
	if err != nil {
		return 0, fmt.Errorf("save album: %w", err)
	}
	a.data = saved
	return saved.ID, nil
}

// PrintInfo implements Scrapable.
func (a *Album) PrintInfo(logger *zap.Logger) {
	logger.Info("album",
		zap.String("title", a.data.Title),
		zap.String("artist", a.artistName),
		zap.Int("release_year", a.data.ReleaseYear),
		zap.Float64("rating", a.data.Rating),
		zap.Int("ratings", a.data.RatingCount),
		zap.Int("tracks", len(a.data.Catalog.Tracks)),
	)
}

func parseYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}
