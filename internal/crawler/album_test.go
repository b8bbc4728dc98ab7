package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlbum_ScrapesArtistAndTracksBeforeSaving(t *testing.T) {
	t.Parallel()
	for _, concurrent := range []bool{false, true} {
		f := newFixture()
		f.deps.ConcurrentDependencies = concurrent
		f.addAlbum("ok-computer", "OK Computer", "Radiohead")

		album := NewAlbum(f.deps, albumURL("ok-computer"))
		require.NoError(t, Scrape(context.Background(), album))

		rec := album.Record()
		require.NotZero(t, rec.ID)
		require.Equal(t, "OK Computer", rec.Title)
		require.Equal(t, 1997, rec.ReleaseYear)
		require.InDelta(t, 4.23, rec.Rating, 1e-9)
		require.Equal(t, 72104, rec.RatingCount)
		require.Equal(t, 1021, rec.ReviewCount)
		require.Equal(t, 9800, rec.ListCount)
		require.Equal(t, 2, rec.IssueCount)
		require.Equal(t, 1, rec.OverallRank)
		require.Equal(t, 1, rec.YearRank)
		require.Len(t, rec.Catalog.Tracks, 2)

		artists, albums, _, _ := f.repo.Counts()
		require.Equal(t, 1, artists)
		require.Equal(t, 1, albums)

		stored, err := f.repo.FindArtist(context.Background(), artistURL("Radiohead"))
		require.NoError(t, err)
		require.Equal(t, stored.ID, rec.ArtistID)
		require.Equal(t, 3, stored.MemberCount)
		require.True(t, stored.Active)

		// Children are recorded before their parent, artist before tracks.
		require.Equal(t, []string{"RYM artist", "spotify tracks", "RYM album"}, descriptions(album.State().Ledger))
		entries := album.State().Ledger.Entries()
		require.Equal(t, artistURL("Radiohead"), entries[0].URL)
		require.Equal(t, albumURL("ok-computer"), entries[1].URL)
		require.Equal(t, albumURL("ok-computer"), entries[2].URL)
		require.False(t, album.State().Ledger.HasFailures())
	}
}

func TestAlbum_StoredAlbumSkipsAllFetches(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.addAlbum("kid-a", "Kid A", "Radiohead")
	ctx := context.Background()

	first := NewAlbum(f.deps, albumURL("kid-a"))
	require.NoError(t, Scrape(ctx, first))
	fetches := f.pages.total()
	catalogCalls := f.catalog.calls
	inserts := f.repo.Inserts()

	second := NewAlbum(f.deps, albumURL("kid-a"))
	require.NoError(t, Scrape(ctx, second))

	require.Equal(t, fetches, f.pages.total())
	require.Equal(t, catalogCalls, f.catalog.calls)
	require.Equal(t, inserts, f.repo.Inserts())
	require.True(t, second.State().SourcedFromStore)
	require.Equal(t, first.State().PersistedID, second.State().PersistedID)
	require.Equal(t, 1, second.State().Ledger.Len())
}

func TestAlbum_ArtistFailureBlocksSave(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.addAlbum("amnesiac", "Amnesiac", "Radiohead")
	f.pages.pages[artistURL("Radiohead")] = "<html><body><p>gone</p></body></html>"

	album := NewAlbum(f.deps, albumURL("amnesiac"))
	err := Scrape(context.Background(), album)

	require.ErrorIs(t, err, ErrDependency)
	require.ErrorIs(t, err, ErrExtraction)
	_, albums, _, _ := f.repo.Counts()
	require.Zero(t, albums)
	require.Zero(t, album.State().PersistedID)

	l := album.State().Ledger
	require.Len(t, failuresFor(l, albumURL("amnesiac")), 1)
	require.Len(t, failuresFor(l, artistURL("Radiohead")), 1)
	// The catalog lookup is skipped once the artist has failed.
	require.Equal(t, []string{"RYM artist", "RYM album"}, descriptions(l))
	require.Zero(t, f.catalog.calls)
}

func TestAlbum_CatalogMissBlocksSave(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.addAlbum("hail", "Hail to the Thief", "Radiohead")
	delete(f.catalog.albums, "Hail to the Thief")

	album := NewAlbum(f.deps, albumURL("hail"))
	err := Scrape(context.Background(), album)

	require.ErrorIs(t, err, ErrDependency)
	artists, albums, _, _ := f.repo.Counts()
	require.Zero(t, albums)
	// The artist is an entity in its own right and stays saved.
	require.Equal(t, 1, artists)
	require.Len(t, failuresFor(album.State().Ledger, albumURL("hail")), 2)
}

func TestAlbum_CatalogTransportErrorIsFetchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.addAlbum("pablo", "Pablo Honey", "Radiohead")
	f.catalog.errs["Pablo Honey"] = errors.New("connection reset")

	album := NewAlbum(f.deps, albumURL("pablo"))
	err := Scrape(context.Background(), album)
	require.ErrorIs(t, err, ErrDependency)
	require.ErrorIs(t, err, ErrFetch)
}

func TestAlbum_MissingTitleIsExtractionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.pages.add(albumURL("blank"), "<html><body><div>nothing here</div></body></html>")

	album := NewAlbum(f.deps, albumURL("blank"))
	err := Scrape(context.Background(), album)

	require.ErrorIs(t, err, ErrExtraction)
	require.Equal(t, 1, f.pages.total())
	require.Zero(t, f.catalog.calls)
	require.Equal(t, 1, album.State().Ledger.Len())
}

func TestAlbum_FetchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()

	album := NewAlbum(f.deps, albumURL("missing"))
	err := Scrape(context.Background(), album)

	require.ErrorIs(t, err, ErrFetch)
	require.Equal(t, 1, f.pages.count(albumURL("missing")))
}

func TestAlbum_ReleaseYearFallsBackToCatalog(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.pages.add(albumURL("undated"), `<html><body><div class="album_title">Undated</div>
<table class="album_info"><tbody><tr><td><span itemprop="byArtist"><a class="artist" href="/artist/Nobody">Nobody</a></span></td></tr></tbody></table>
</body></html>`)
	f.pages.add(artistURL("Nobody"), artistHTML("Nobody"))
	f.catalog.albums["Undated"] = catalogAlbum("Undated")

	album := NewAlbum(f.deps, albumURL("undated"))
	require.NoError(t, Scrape(context.Background(), album))
	require.Equal(t, 1997, album.Record().ReleaseYear)
	require.Zero(t, album.Record().Rating)
}

func TestParseYear(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1997, parseYear("12 June 1997"))
	require.Equal(t, 2021, parseYear("2021"))
	require.Zero(t, parseYear("unknown"))
}
