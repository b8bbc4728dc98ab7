package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// Artist page selectors.
const (
	artistNameSelector        = "h1.artist_name_hdr"
	artistDisbandedSelector   = "div.artist_info td.disbanded"
	artistBirthSelector       = "div.artist_info td.born"
	artistMembersSelector     = "div.artist_info td.members a"
	artistDiscographySelector = "div#discography div.disco_release"
	artistListCountSelector   = "span.artist_list_count"
	artistShowCountSelector   = "span.artist_show_count"
)

// Artist scrapes an RYM artist page.
type Artist struct {
	state State
	deps  Deps
	data  music.Artist
}

// NewArtist builds an Artist node for url.
func NewArtist(deps Deps, url string) *Artist {
	a := &Artist{deps: deps}
	a.state = newState(KindArtist, url, "RYM artist")
	a.data.URL = url
	return a
}

// State implements Scrapable.
func (a *Artist) State() *State { return &a.state }

// Record returns the artist as extracted or loaded from the store.
func (a *Artist) Record() music.Artist { return a.data }

// Existing implements Persistable.
func (a *Artist) Existing(ctx context.Context) (int64, bool, error) {
	rec, err := a.deps.Store.FindArtist(ctx, a.state.URL)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find artist: %w", err)
	}
	a.data = rec
	return rec.ID, true, nil
}

// Extract implements Extractable.
func (a *Artist) Extract(ctx context.Context) error {
	doc, err := a.deps.Pages.Fetch(ctx, a.state.URL)
	if err != nil {
		return fetchFailure(err)
	}
	if err := a.extract(doc); err != nil {
		return extractionFailure(err)
	}
	return nil
}

func (a *Artist) extract(doc *document.Document) error {
	name, err := doc.Element(artistNameSelector, "artist name", true)
	if err != nil {
		return err
	}
	a.data.Name = name.Text()

	disbanded, err := doc.Element(artistDisbandedSelector, "disbanded date", false)
	if err != nil {
		return err
	}
	a.data.Active = disbanded == nil

	born, err := doc.Element(artistBirthSelector, "birth date", false)
	if err != nil {
		return err
	}
	members, err := doc.List(artistMembersSelector, "members", false)
	if err != nil {
		return err
	}
	a.data.SoloPerformer = born != nil
	a.data.MemberCount = len(members)
	if a.data.SoloPerformer && a.data.MemberCount == 0 {
		a.data.MemberCount = 1
	}

	releases, err := doc.List(artistDiscographySelector, "discography releases", false)
	if err != nil {
		return err
	}
	a.data.DiscographyCount = len(releases)

	if a.data.ListCount, err = optionalInt(doc, artistListCountSelector, "list count"); err != nil {
		return err
	}
	if a.data.ShowCount, err = optionalInt(doc, artistShowCountSelector, "show count"); err != nil {
		return err
	}
	return nil
}

// ScrapeDependencies implements DependencyResolvable; artists have none.
func (a *Artist) ScrapeDependencies(context.Context) error { return nil }

// Save implements Persistable.
func (a *Artist) Save(ctx context.Context) (int64, error) {
	saved, err := a.deps.Store.SaveArtist(ctx, a.data)
	if err != nil {
		return 0, fmt.Errorf("save artist: %w", err)
	}
	a.data = saved
	return saved.ID, nil
}

// PrintInfo implements Scrapable.
func (a *Artist) PrintInfo(logger *zap.Logger) {
	logger.Info("artist",
		zap.String("name", a.data.Name),
		zap.Bool("active", a.data.Active),
		zap.Int("members", a.data.MemberCount),
		zap.Int("discography", a.data.DiscographyCount),
	)
}

func optionalInt(doc *document.Document, selector, description string) (int, error) {
	el, err := doc.Element(selector, description, false)
	if err != nil {
		return 0, err
	}
	n, err := el.Int()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", description, err)
	}
	return n, nil
}
