// Package store declares the entity repository used for deduplication and
// persistence.
package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/music-crawler/internal/music"
)

// ErrNotFound signals that no entity exists for the requested natural key.
var ErrNotFound = errors.New("record not found")

// ErrMissingReference signals that a save referenced a parent entity that has
// not been persisted.
var ErrMissingReference = errors.New("referenced record not persisted")

// Repository looks up entities by natural key and persists them. Save methods
// are lookup-or-insert: saving an entity whose natural key already exists
// returns the stored record instead of creating a duplicate.
type Repository interface {
	// FindArtist loads an artist by page URL or returns ErrNotFound.
	FindArtist(ctx context.Context, url string) (music.Artist, error)
	// SaveArtist persists an artist and returns the stored form.
	SaveArtist(ctx context.Context, artist music.Artist) (music.Artist, error)

	// FindAlbum loads an album by page URL or returns ErrNotFound.
	FindAlbum(ctx context.Context, url string) (music.Album, error)
	// SaveAlbum persists an album together with album.Catalog.Tracks.
	// album.ArtistID must reference a stored artist.
	SaveAlbum(ctx context.Context, album music.Album) (music.Album, error)

	// FindProfile loads a profile by username or returns ErrNotFound.
	FindProfile(ctx context.Context, name string) (music.Profile, error)
	// SaveProfile persists a profile and returns the stored form.
	SaveProfile(ctx context.Context, profile music.Profile) (music.Profile, error)

	// FindReview loads a review by its site identifier or returns ErrNotFound.
	FindReview(ctx context.Context, identifier string) (music.Review, error)
	// SaveReview persists a review. AlbumID and ProfileID must reference
	// stored records.
	SaveReview(ctx context.Context, review music.Review) (music.Review, error)

	// LoadAlbumDetail loads an album with its artist and tracks.
	LoadAlbumDetail(ctx context.Context, id int64) (music.AlbumDetail, error)
	// ListAlbumIDs returns every stored album ID in ascending order.
	ListAlbumIDs(ctx context.Context) ([]int64, error)

	// Close releases underlying resources.
	Close()
}
