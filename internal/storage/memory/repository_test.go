package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

func TestRepositoryArtistLookupOrInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.FindArtist(ctx, "https://rym/artist/a")
	require.ErrorIs(t, err, store.ErrNotFound)

	first, err := repo.SaveArtist(ctx, music.Artist{URL: "https://rym/artist/a", Name: "A"})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.SaveArtist(ctx, music.Artist{URL: "https://rym/artist/a", Name: "renamed"})
	require.NoError(t, err)
	require.Equal(t, first, second, "second save must return the stored record")

	found, err := repo.FindArtist(ctx, "https://rym/artist/a")
	require.NoError(t, err)
	require.Equal(t, first, found)

	artists, _, _, _ := repo.Counts()
	require.Equal(t, 1, artists)
}

func TestRepositoryAlbumRequiresArtist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.SaveAlbum(ctx, music.Album{URL: "https://rym/album/x", ArtistID: 99})
	require.ErrorIs(t, err, store.ErrMissingReference)

	artist, err := repo.SaveArtist(ctx, music.Artist{URL: "https://rym/artist/a"})
	require.NoError(t, err)

	album, err := repo.SaveAlbum(ctx, music.Album{
		URL:      "https://rym/album/x",
		ArtistID: artist.ID,
		Catalog: music.CatalogAlbum{Tracks: []music.Track{
			{Name: "one", Position: 1},
			{Name: "two", Position: 2},
		}},
	})
	require.NoError(t, err)
	require.NotZero(t, album.ID)

	detail, err := repo.LoadAlbumDetail(ctx, album.ID)
	require.NoError(t, err)
	require.Equal(t, artist, detail.Artist)
	require.Len(t, detail.Tracks, 2)
	for _, tr := range detail.Tracks {
		require.Equal(t, album.ID, tr.AlbumID)
		require.NotZero(t, tr.ID)
	}

	ids, err := repo.ListAlbumIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{album.ID}, ids)

	_, err = repo.LoadAlbumDetail(ctx, 12345)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRepositoryReviewRequiresAlbumAndProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRepository()

	artist, err := repo.SaveArtist(ctx, music.Artist{URL: "https://rym/artist/a"})
	require.NoError(t, err)
	album, err := repo.SaveAlbum(ctx, music.Album{URL: "https://rym/album/x", ArtistID: artist.ID})
	require.NoError(t, err)

	_, err = repo.SaveReview(ctx, music.Review{Identifier: "r1", AlbumID: album.ID, ProfileID: 42})
	require.ErrorIs(t, err, store.ErrMissingReference)

	profile, err := repo.SaveProfile(ctx, music.Profile{Name: "someone"})
	require.NoError(t, err)

	review, err := repo.SaveReview(ctx, music.Review{Identifier: "r1", AlbumID: album.ID, ProfileID: profile.ID, Score: 4.5})
	require.NoError(t, err)

	again, err := repo.SaveReview(ctx, music.Review{Identifier: "r1", AlbumID: album.ID, ProfileID: profile.ID, Score: 1})
	require.NoError(t, err)
	require.Equal(t, review, again)

	found, err := repo.FindReview(ctx, "r1")
	require.NoError(t, err)
	require.InDelta(t, 4.5, found.Score, 1e-9)

	foundProfile, err := repo.FindProfile(ctx, "someone")
	require.NoError(t, err)
	require.Equal(t, profile, foundProfile)
}
