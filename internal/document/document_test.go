package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<div class="album_title">Loveless <span class="year">1991</span></div>
<a class="artist" href="/artist/my-bloody-valentine">My Bloody Valentine</a>
<span class="ratings">12,345 ratings</span>
<ul class="tracks"><li>Only Shallow</li><li>Loomer</li></ul>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse("https://rateyourmusic.com/release/album/mbv/loveless/", []byte(samplePage))
	require.NoError(t, err)
	return doc
}

func TestElementRequiredAndOptional(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)

	title, err := doc.Element("div.album_title", "album title", true)
	require.NoError(t, err)
	require.Equal(t, "Loveless 1991", title.Text())
	require.Equal(t, "album title", title.Description())

	missing, err := doc.Element("div.nope", "issue count", false)
	require.NoError(t, err)
	require.Nil(t, missing)
	require.Equal(t, "", missing.Text())
	n, err := missing.Int()
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = doc.Element("div.nope", "album rating", true)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingElement))
	var missingErr *MissingError
	require.ErrorAs(t, err, &missingErr)
	require.Equal(t, "album rating", missingErr.Description)
	require.Contains(t, err.Error(), "rateyourmusic.com")
}

func TestNestedLookupOnAbsentElement(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	absent, err := doc.Element("section.credits", "credits", false)
	require.NoError(t, err)

	_, err = absent.Element("span", "credit name", true)
	require.ErrorIs(t, err, ErrMissingElement)

	child, err := absent.Element("span", "credit name", false)
	require.NoError(t, err)
	require.Nil(t, child)
}

func TestHrefResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	link, err := doc.Element("a.artist", "artist link", true)
	require.NoError(t, err)
	require.Equal(t, "https://rateyourmusic.com/artist/my-bloody-valentine", link.Href())
}

func TestList(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	items, err := doc.List("ul.tracks > li", "track rows", true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Loomer", items[1].Text())

	none, err := doc.List("ol.none > li", "credits", false)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = doc.List("ol.none > li", "credits", true)
	require.ErrorIs(t, err, ErrMissingElement)
}

func TestNumber(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	ratings, err := doc.Element("span.ratings", "rating count", true)
	require.NoError(t, err)
	n, err := ratings.Int()
	require.NoError(t, err)
	require.Equal(t, 12345, n)

	cases := map[string]float64{
		"":        0,
		"3.85":    3.85,
		"#12":     12,
		" 4 stars": 4,
	}
	for in, want := range cases {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		require.InDelta(t, want, got, 1e-9, in)
	}

	_, err = ParseNumber("n/a")
	require.Error(t, err)
}
