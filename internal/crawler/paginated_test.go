package crawler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginatedCrawler_AdvancesAndCountsFailures(t *testing.T) {
	t.Parallel()
	f := newFixture()
	seedProfile(t, f, "alice")
	f.addAlbum("a", "Album A", "Artist A")
	base := ReviewURL(testSite, "alice")
	f.pages.add(base+"1", reviewPageHTML(row("a", "R1")))
	// Pages 2 and 3 have no listing, so their fetch fails.

	c := NewReviewCrawler(f.deps, "alice")
	ctx := context.Background()
	require.Equal(t, Cursor{BaseURL: base, Page: 1}, c.Cursor())

	require.Equal(t, Cursor{BaseURL: base, Page: 2, ConsecutiveFailures: 0}, c.ScrapePage(ctx))
	require.Equal(t, Cursor{BaseURL: base, Page: 3, ConsecutiveFailures: 1}, c.ScrapePage(ctx))
	require.Equal(t, Cursor{BaseURL: base, Page: 4, ConsecutiveFailures: 2}, c.ScrapePage(ctx))

	// Each page is attempted exactly once.
	for _, page := range []string{"1", "2", "3"} {
		require.Equal(t, 1, f.pages.count(base+page))
	}
	require.Len(t, failuresFor(c.Ledger(), base+"2"), 1)
	require.Len(t, failuresFor(c.Ledger(), base+"3"), 1)
}

func TestPaginatedCrawler_SuccessResetsFailures(t *testing.T) {
	t.Parallel()
	f := newFixture()
	base := ReviewURL(testSite, "alice")
	f.pages.add(base+"3", reviewPageHTML())

	c := NewReviewCrawler(f.deps, "alice")
	ctx := context.Background()
	c.ScrapePage(ctx)
	require.Equal(t, 2, c.ScrapePage(ctx).ConsecutiveFailures)
	cur := c.ScrapePage(ctx)
	require.Equal(t, 0, cur.ConsecutiveFailures)
	require.Equal(t, 4, cur.Page)
}

func TestPaginatedCrawler_RecoversFromPanics(t *testing.T) {
	t.Parallel()
	f := newFixture()
	base := ReviewURL(testSite, "alice")
	f.pages.panicOn(base + "1")

	c := NewReviewCrawler(f.deps, "alice")
	var cur Cursor
	require.NotPanics(t, func() { cur = c.ScrapePage(context.Background()) })
	require.Equal(t, 2, cur.Page)
	require.Equal(t, 1, cur.ConsecutiveFailures)
	require.Len(t, failuresFor(c.Ledger(), base+"1"), 1)
}

func TestPaginatedCrawler_RecoversFromDependencyPanics(t *testing.T) {
	t.Parallel()
	for _, concurrent := range []bool{false, true} {
		t.Run(fmt.Sprintf("concurrent=%t", concurrent), func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			f.deps.ConcurrentDependencies = concurrent
			seedProfile(t, f, "alice")
			f.addAlbum("a", "Album A", "Radiohead")
			f.pages.panicOn(artistURL("Radiohead"))
			base := ReviewURL(testSite, "alice")
			f.pages.add(base+"1", reviewPageHTML(row("a", "R1")))

			c := NewReviewCrawler(f.deps, "alice")
			var cur Cursor
			require.NotPanics(t, func() { cur = c.ScrapePage(context.Background()) })

			// The broken album drops its review; the page itself succeeds.
			require.Equal(t, Cursor{BaseURL: base, Page: 2}, cur)
			require.Len(t, failuresFor(c.Ledger(), artistURL("Radiohead")), 1)
			require.Len(t, failuresFor(c.Ledger(), albumURL("a")), 1)
			require.Empty(t, failuresFor(c.Ledger(), base+"1"))
			_, albums, _, reviews := f.repo.Counts()
			require.Zero(t, albums)
			require.Zero(t, reviews)
		})
	}
}

func TestPaginatedCrawler_CustomFactory(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.addAlbum("x", "Album X", "Artist X")
	var urls []string
	c := NewPaginatedCrawler(testSite+"/release/album/", func(url string) Scrapable {
		urls = append(urls, url)
		return NewAlbum(f.deps, url)
	}, nil)

	c.ScrapePage(context.Background())
	require.Equal(t, []string{testSite + "/release/album/1"}, urls)
	require.Equal(t, 1, c.Cursor().ConsecutiveFailures)
}

func TestCursor_PageURL(t *testing.T) {
	t.Parallel()
	require.Equal(t, "https://rym.test/c/12", Cursor{BaseURL: "https://rym.test/c/", Page: 12}.PageURL())
}
