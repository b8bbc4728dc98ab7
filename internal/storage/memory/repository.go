// Package memory provides in-memory implementations for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// Repository implements store.Repository with maps keyed by natural key.
type Repository struct {
	mu sync.RWMutex

	nextID int64

	artists     map[string]music.Artist
	artistsByID map[int64]music.Artist
	albums      map[string]music.Album
	albumsByID  map[int64]music.Album
	tracks      map[int64][]music.Track
	profiles    map[string]music.Profile
	profileIDs  map[int64]struct{}
	reviews     map[string]music.Review

	saves int
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		artists:     make(map[string]music.Artist),
		artistsByID: make(map[int64]music.Artist),
		albums:      make(map[string]music.Album),
		albumsByID:  make(map[int64]music.Album),
		tracks:      make(map[int64][]music.Track),
		profiles:    make(map[string]music.Profile),
		profileIDs:  make(map[int64]struct{}),
		reviews:     make(map[string]music.Review),
	}
}

// FindArtist loads an artist by URL.
func (r *Repository) FindArtist(_ context.Context, url string) (music.Artist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	artist, ok := r.artists[url]
	if !ok {
		return music.Artist{}, store.ErrNotFound
	}
	return artist, nil
}

// SaveArtist stores the artist unless its URL is already present.
func (r *Repository) SaveArtist(_ context.Context, artist music.Artist) (music.Artist, error) {
	if artist.URL == "" {
		return music.Artist{}, fmt.Errorf("artist url is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.artists[artist.URL]; ok {
		return existing, nil
	}
	artist.ID = r.allocID()
	r.artists[artist.URL] = artist
	r.artistsByID[artist.ID] = artist
	return artist, nil
}

// FindAlbum loads an album by URL.
func (r *Repository) FindAlbum(_ context.Context, url string) (music.Album, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	album, ok := r.albums[url]
	if !ok {
		return music.Album{}, store.ErrNotFound
	}
	return album, nil
}

// SaveAlbum stores the album and its catalog tracks unless its URL is already
// present.
func (r *Repository) SaveAlbum(_ context.Context, album music.Album) (music.Album, error) {
	if album.URL == "" {
		return music.Album{}, fmt.Errorf("album url is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.albums[album.URL]; ok {
		return existing, nil
	}
	if _, ok := r.artistsByID[album.ArtistID]; !ok {
		return music.Album{}, fmt.Errorf("album %s artist %d: %w", album.URL, album.ArtistID, store.ErrMissingReference)
	}
	album.ID = r.allocID()
	tracks := make([]music.Track, len(album.Catalog.Tracks))
	for i, t := range album.Catalog.Tracks {
		t.ID = r.allocID()
		t.AlbumID = album.ID
		tracks[i] = t
	}
	album.Catalog.Tracks = tracks
	r.albums[album.URL] = album
	r.albumsByID[album.ID] = album
	r.tracks[album.ID] = tracks
	return album, nil
}

// FindProfile loads a profile by username.
func (r *Repository) FindProfile(_ context.Context, name string) (music.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[name]
	if !ok {
		return music.Profile{}, store.ErrNotFound
	}
	return profile, nil
}

// SaveProfile stores the profile unless its name is already present.
func (r *Repository) SaveProfile(_ context.Context, profile music.Profile) (music.Profile, error) {
	if profile.Name == "" {
		return music.Profile{}, fmt.Errorf("profile name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[profile.Name]; ok {
		return existing, nil
	}
	profile.ID = r.allocID()
	r.profiles[profile.Name] = profile
	r.profileIDs[profile.ID] = struct{}{}
	return profile, nil
}

// FindReview loads a review by identifier.
func (r *Repository) FindReview(_ context.Context, identifier string) (music.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	review, ok := r.reviews[identifier]
	if !ok {
		return music.Review{}, store.ErrNotFound
	}
	return review, nil
}

// SaveReview stores the review unless its identifier is already present.
func (r *Repository) SaveReview(_ context.Context, review music.Review) (music.Review, error) {
	if review.Identifier == "" {
		return music.Review{}, fmt.Errorf("review identifier is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.reviews[review.Identifier]; ok {
		return existing, nil
	}
	if _, ok := r.albumsByID[review.AlbumID]; !ok {
		return music.Review{}, fmt.Errorf("review %s album %d: %w", review.Identifier, review.AlbumID, store.ErrMissingReference)
	}
	if _, ok := r.profileIDs[review.ProfileID]; !ok {
		return music.Review{}, fmt.Errorf("review %s profile %d: %w", review.Identifier, review.ProfileID, store.ErrMissingReference)
	}
	review.ID = r.allocID()
	r.reviews[review.Identifier] = review
	return review, nil
}

// LoadAlbumDetail joins an album with its artist and tracks.
func (r *Repository) LoadAlbumDetail(_ context.Context, id int64) (music.AlbumDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	album, ok := r.albumsByID[id]
	if !ok {
		return music.AlbumDetail{}, store.ErrNotFound
	}
	artist, ok := r.artistsByID[album.ArtistID]
	if !ok {
		return music.AlbumDetail{}, fmt.Errorf("album %d artist: %w", id, store.ErrNotFound)
	}
	tracks := append([]music.Track(nil), r.tracks[id]...)
	return music.AlbumDetail{Album: album, Artist: artist, Tracks: tracks}, nil
}

// ListAlbumIDs returns every album ID in ascending order.
func (r *Repository) ListAlbumIDs(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.albumsByID))
	for id := range r.albumsByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Counts reports how many records of each kind are stored.
func (r *Repository) Counts() (artists, albums, profiles, reviews int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artists), len(r.albums), len(r.profiles), len(r.reviews)
}

// Inserts reports how many records have been created, across all kinds.
func (r *Repository) Inserts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// Close implements store.Repository; it performs no action.
func (r *Repository) Close() {}

// allocID must be called with mu held.
func (r *Repository) allocID() int64 {
	r.nextID++
	r.saves++
	return r.nextID
}
