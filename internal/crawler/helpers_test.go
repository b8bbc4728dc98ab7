package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/ledger"
	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/storage/memory"
)

const testSite = "https://rym.test"

// fakePages serves canned HTML and counts fetches per URL. Unknown URLs fail
// like a 404.
type fakePages struct {
	mu     sync.Mutex
	pages  map[string]string
	panics map[string]bool
	calls  map[string]int
}

func newFakePages() *fakePages {
	return &fakePages{
		pages:  make(map[string]string),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (f *fakePages) add(url, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = html
}

func (f *fakePages) panicOn(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[url] = true
}

func (f *fakePages) Fetch(_ context.Context, url string) (*document.Document, error) {
	f.mu.Lock()
	f.calls[url]++
	html, ok := f.pages[url]
	shouldPanic := f.panics[url]
	f.mu.Unlock()
	if shouldPanic {
		panic("fetcher blew up on " + url)
	}
	if !ok {
		return nil, fmt.Errorf("GET %s: status 404", url)
	}
	return document.Parse(url, []byte(html))
}

func (f *fakePages) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakePages) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// fakeCatalog answers FindAlbum from a map keyed by album title.
type fakeCatalog struct {
	mu     sync.Mutex
	albums map[string]music.CatalogAlbum
	errs   map[string]error
	calls  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		albums: make(map[string]music.CatalogAlbum),
		errs:   make(map[string]error),
	}
}

func (f *fakeCatalog) FindAlbum(_ context.Context, title, _ string) (music.CatalogAlbum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[title]; ok {
		return music.CatalogAlbum{}, err
	}
	if album, ok := f.albums[title]; ok {
		return album, nil
	}
	return music.CatalogAlbum{}, fmt.Errorf("no match for %q: %w", title, ErrExtraction)
}

type fixture struct {
	pages   *fakePages
	catalog *fakeCatalog
	repo    *memory.Repository
	deps    Deps
}

func newFixture() *fixture {
	f := &fixture{
		pages:   newFakePages(),
		catalog: newFakeCatalog(),
		repo:    memory.NewRepository(),
	}
	f.deps = Deps{
		Pages:   f.pages,
		Catalog: f.catalog,
		Store:   f.repo,
		SiteURL: testSite,
	}
	return f
}

func albumURL(slug string) string  { return testSite + "/release/album/" + slug + "/" }
func artistURL(slug string) string { return testSite + "/artist/" + slug }

// addAlbum registers an album page, its artist page and its catalog entry.
func (f *fixture) addAlbum(slug, title, artist string) {
	f.pages.add(albumURL(slug), albumHTML(title, "/artist/"+artist, artist))
	f.pages.add(artistURL(artist), artistHTML(artist))
	f.catalog.albums[title] = catalogAlbum(title)
}

func albumHTML(title, artistHref, artistName string) string {
	return `<html><body>
<div class="album_title">` + title + `</div>
<table class="album_info"><tbody>
<tr><td><span itemprop="byArtist"><a class="artist" href="` + artistHref + `">` + artistName + `</a></span></td></tr>
<tr><td class="release_date">12 June 1997</td></tr>
<tr><td><span class="avg_rating">4.23</span> from <span class="num_ratings">72,104</span> ratings</td></tr>
<tr><td class="rank_overall">#1 for all-time</td><td class="rank_year">#1 for 1997</td></tr>
</tbody></table>
<div class="section_reviews"><span class="review_count">1,021</span></div>
<div class="section_lists"><span class="list_count">9,800</span></div>
<div class="section_issues"><div class="issue_info">CD</div><div class="issue_info">LP</div></div>
</body></html>`
}

func artistHTML(name string) string {
	return `<html><body>
<h1 class="artist_name_hdr">` + name + `</h1>
<div class="artist_info"><table><tbody>
<tr><td class="members"><a>One</a><a>Two</a><a>Three</a></td></tr>
</tbody></table></div>
<div id="discography"><div class="disco_release">a</div><div class="disco_release">b</div></div>
<span class="artist_list_count">120</span>
<span class="artist_show_count">4</span>
</body></html>`
}

func catalogAlbum(title string) music.CatalogAlbum {
	return music.CatalogAlbum{
		SpotifyID:        "sp-" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Popularity:       70,
		AvailableMarkets: 180,
		Copyrights:       2,
		ReleaseYear:      1997,
		ArtistPopularity: 80,
		Tracks: []music.Track{
			{SpotifyID: "t1", Name: "First", Position: 1, AudioFeatures: music.AudioFeatures{DurationMs: 200000, Energy: 0.5, TimeSignature: 4}},
			{SpotifyID: "t2", Name: "Second", Position: 2, AudioFeatures: music.AudioFeatures{DurationMs: 100000, Energy: 0.7, TimeSignature: 3}},
		},
	}
}

type reviewRow struct {
	albumHref  string
	stars      string
	identifier string
	month      string
	day        string
	year       string
}

func reviewPageHTML(rows ...reviewRow) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="mbgen"><tbody><tr><th>Date</th><th>Rating</th><th>Album</th></tr>`)
	for _, r := range rows {
		b.WriteString(`<tr>`)
		b.WriteString(`<td class="or_q_rating_date_d"><div class="date_element_month">` + r.month +
			`</div><div class="date_element_day">` + r.day +
			`</div><div class="date_element_year">` + r.year + `</div></td>`)
		b.WriteString(`<td class="or_q_rating_date_s"><img title="` + r.stars + `"><span>` + r.identifier + `</span></td>`)
		b.WriteString(`<td class="or_q_albumartist_td"><div class="or_q_albumartist"><i><a class="album" href="` +
			r.albumHref + `">x</a></i></div></td>`)
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func row(slug, identifier string) reviewRow {
	return reviewRow{
		albumHref:  "/release/album/" + slug + "/",
		stars:      "4.00 stars",
		identifier: identifier,
		month:      "Mar",
		day:        "4",
		year:       "2019",
	}
}

func profileHTML(name string) string {
	return `<html><body><div class="profile_header">
<span class="profile_username">~` + name + `</span>
<span class="profile_info">32 / Female</span>
</div></body></html>`
}

func failuresFor(l *ledger.Ledger, url string) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range l.Failures() {
		if e.URL == url {
			out = append(out, e)
		}
	}
	return out
}

func descriptions(l *ledger.Ledger) []string {
	entries := l.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Description
	}
	return out
}
