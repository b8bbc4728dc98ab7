package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// foreignKeyViolation is the SQLSTATE for a failed REFERENCES check.
const foreignKeyViolation = "23503"

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	MaxConns int32
	// Migrate applies the embedded schema on open.
	Migrate bool
}

// querier is the subset of *pgxpool.Pool the repository uses, so pgxmock
// pools slot in for tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Repository implements store.Repository.
type Repository struct {
	pool querier
}

var _ store.Repository = (*Repository)(nil)

// Open connects to Postgres and optionally applies the schema.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := &Repository{pool: pool}
	if cfg.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return repo, nil
}

// NewWithPool constructs a repository from an existing pool (primarily for
// testing).
func NewWithPool(pool querier) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Repository{pool: pool}, nil
}

// Migrate creates any missing tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const artistColumns = `id, url, name, active, member_count, solo_performer, discography_count, list_count, show_count`

func scanArtist(row pgx.Row) (music.Artist, error) {
	var a music.Artist
	err := row.Scan(&a.ID, &a.URL, &a.Name, &a.Active, &a.MemberCount, &a.SoloPerformer,
		&a.DiscographyCount, &a.ListCount, &a.ShowCount)
	return a, err
}

// FindArtist loads an artist by page URL.
func (r *Repository) FindArtist(ctx context.Context, url string) (music.Artist, error) {
	a, err := scanArtist(r.pool.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE url = $1`, url))
	if err != nil {
		return music.Artist{}, notFound("find artist", err)
	}
	return a, nil
}

// SaveArtist inserts the artist unless its URL is already stored.
func (r *Repository) SaveArtist(ctx context.Context, a music.Artist) (music.Artist, error) {
	const query = `
INSERT INTO artists (url, name, active, member_count, solo_performer, discography_count, list_count, show_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO NOTHING
RETURNING id`
	err := r.pool.QueryRow(ctx, query, a.URL, a.Name, a.Active, a.MemberCount, a.SoloPerformer,
		a.DiscographyCount, a.ListCount, a.ShowCount).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindArtist(ctx, a.URL)
	}
	if err != nil {
		return music.Artist{}, mapError("insert artist", err)
	}
	return a, nil
}

const albumColumns = `id, url, title, artist_id, release_year, rating, rating_count, review_count, list_count,
issue_count, overall_rank, year_rank, spotify_id, popularity, available_markets, copyrights,
catalog_release_year, artist_popularity`

func scanAlbum(row pgx.Row) (music.Album, error) {
	var a music.Album
	err := row.Scan(&a.ID, &a.URL, &a.Title, &a.ArtistID, &a.ReleaseYear, &a.Rating, &a.RatingCount,
		&a.ReviewCount, &a.ListCount, &a.IssueCount, &a.OverallRank, &a.YearRank,
		&a.Catalog.SpotifyID, &a.Catalog.Popularity, &a.Catalog.AvailableMarkets, &a.Catalog.Copyrights,
		&a.Catalog.ReleaseYear, &a.Catalog.ArtistPopularity)
	return a, err
}

// FindAlbum loads an album by page URL. Tracks are not loaded; use
// LoadAlbumDetail for those.
func (r *Repository) FindAlbum(ctx context.Context, url string) (music.Album, error) {
	a, err := scanAlbum(r.pool.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE url = $1`, url))
	if err != nil {
		return music.Album{}, notFound("find album", err)
	}
	return a, nil
}

// SaveAlbum inserts the album and its tracks in one transaction unless the
// album URL is already stored.
func (r *Repository) SaveAlbum(ctx context.Context, a music.Album) (saved music.Album, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return music.Album{}, fmt.Errorf("begin album tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const insertAlbum = `
INSERT INTO albums (url, title, artist_id, release_year, rating, rating_count, review_count, list_count,
    issue_count, overall_rank, year_rank, spotify_id, popularity, available_markets, copyrights,
    catalog_release_year, artist_popularity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (url) DO NOTHING
RETURNING id`
	c := a.Catalog
	err = tx.QueryRow(ctx, insertAlbum, a.URL, a.Title, a.ArtistID, a.ReleaseYear, a.Rating, a.RatingCount,
		a.ReviewCount, a.ListCount, a.IssueCount, a.OverallRank, a.YearRank,
		c.SpotifyID, c.Popularity, c.AvailableMarkets, c.Copyrights, c.ReleaseYear, c.ArtistPopularity).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return r.FindAlbum(ctx, a.URL)
	}
	if err != nil {
		return music.Album{}, mapError("insert album", err)
	}

	const insertTrack = `
INSERT INTO tracks (album_id, spotify_id, name, position, acousticness, danceability, duration_ms, energy,
    instrumentalness, liveness, loudness, mode, speechiness, tempo, time_signature, valence)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id`
	tracks := make([]music.Track, len(c.Tracks))
	for i, t := range c.Tracks {
		t.AlbumID = a.ID
		f := t.AudioFeatures
		err = tx.QueryRow(ctx, insertTrack, t.AlbumID, t.SpotifyID, t.Name, t.Position,
			f.Acousticness, f.Danceability, f.DurationMs, f.Energy, f.Instrumentalness, f.Liveness,
			f.Loudness, f.Mode, f.Speechiness, f.Tempo, f.TimeSignature, f.Valence).Scan(&t.ID)
		if err != nil {
			return music.Album{}, mapError("insert track", err)
		}
		tracks[i] = t
	}
	a.Catalog.Tracks = tracks

	if err = tx.Commit(ctx); err != nil {
		return music.Album{}, fmt.Errorf("commit album tx: %w", err)
	}
	return a, nil
}

const profileColumns = `id, name, url, age, gender`

func scanProfile(row pgx.Row) (music.Profile, error) {
	var (
		p      music.Profile
		gender string
	)
	err := row.Scan(&p.ID, &p.Name, &p.URL, &p.Age, &gender)
	p.Gender = music.Gender(gender)
	return p, err
}

// FindProfile loads a profile by username.
func (r *Repository) FindProfile(ctx context.Context, name string) (music.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE name = $1`, name))
	if err != nil {
		return music.Profile{}, notFound("find profile", err)
	}
	return p, nil
}

// SaveProfile inserts the profile unless its username is already stored.
func (r *Repository) SaveProfile(ctx context.Context, p music.Profile) (music.Profile, error) {
	const query = `
INSERT INTO profiles (name, url, age, gender)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO NOTHING
RETURNING id`
	err := r.pool.QueryRow(ctx, query, p.Name, p.URL, p.Age, string(p.Gender)).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindProfile(ctx, p.Name)
	}
	if err != nil {
		return music.Profile{}, mapError("insert profile", err)
	}
	return p, nil
}

const reviewColumns = `id, identifier, album_id, profile_id, score, year, month, day`

func scanReview(row pgx.Row) (music.Review, error) {
	var r music.Review
	err := row.Scan(&r.ID, &r.Identifier, &r.AlbumID, &r.ProfileID, &r.Score, &r.Date.Year, &r.Date.Month, &r.Date.Day)
	return r, err
}

// FindReview loads a review by its site identifier.
func (r *Repository) FindReview(ctx context.Context, identifier string) (music.Review, error) {
	rev, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE identifier = $1`, identifier))
	if err != nil {
		return music.Review{}, notFound("find review", err)
	}
	return rev, nil
}

// SaveReview inserts the review unless its identifier is already stored.
func (r *Repository) SaveReview(ctx context.Context, rev music.Review) (music.Review, error) {
	const query = `
INSERT INTO reviews (identifier, album_id, profile_id, score, year, month, day)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (identifier) DO NOTHING
RETURNING id`
	err := r.pool.QueryRow(ctx, query, rev.Identifier, rev.AlbumID, rev.ProfileID, rev.Score,
		rev.Date.Year, rev.Date.Month, rev.Date.Day).Scan(&rev.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindReview(ctx, rev.Identifier)
	}
	if err != nil {
		return music.Review{}, mapError("insert review", err)
	}
	return rev, nil
}

// LoadAlbumDetail loads an album by ID with its artist and ordered tracks.
func (r *Repository) LoadAlbumDetail(ctx context.Context, id int64) (music.AlbumDetail, error) {
	album, err := scanAlbum(r.pool.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1`, id))
	if err != nil {
		return music.AlbumDetail{}, notFound("load album", err)
	}
	artist, err := scanArtist(r.pool.QueryRow(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = $1`, album.ArtistID))
	if err != nil {
		return music.AlbumDetail{}, notFound("load album artist", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, album_id, spotify_id, name, position, acousticness, danceability, duration_ms, energy,
    instrumentalness, liveness, loudness, mode, speechiness, tempo, time_signature, valence
FROM tracks WHERE album_id = $1 ORDER BY position`, id)
	if err != nil {
		return music.AlbumDetail{}, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []music.Track
	for rows.Next() {
		var t music.Track
		f := &t.AudioFeatures
		if err := rows.Scan(&t.ID, &t.AlbumID, &t.SpotifyID, &t.Name, &t.Position,
			&f.Acousticness, &f.Danceability, &f.DurationMs, &f.Energy, &f.Instrumentalness, &f.Liveness,
			&f.Loudness, &f.Mode, &f.Speechiness, &f.Tempo, &f.TimeSignature, &f.Valence); err != nil {
			return music.AlbumDetail{}, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return music.AlbumDetail{}, fmt.Errorf("iterate tracks: %w", err)
	}
	album.Catalog.Tracks = tracks
	return music.AlbumDetail{Album: album, Artist: artist, Tracks: tracks}, nil
}

// ListAlbumIDs returns every album ID in ascending order.
func (r *Repository) ListAlbumIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM albums ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query album ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect album ids: %w", err)
	}
	return ids, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, store.ErrMissingReference)
	}
	return fmt.Errorf("%s: %w", op, err)
}
