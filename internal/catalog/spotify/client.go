// Package spotify resolves albums against the Spotify Web API using the
// client-credentials flow.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/JakeFAU/music-crawler/internal/crawler"
	"github.com/JakeFAU/music-crawler/internal/metrics"
	"github.com/JakeFAU/music-crawler/internal/music"
)

// ErrNoMatch is returned when a search finds no album. It matches
// crawler.ErrExtraction: the API answered, it just had nothing usable.
var ErrNoMatch = fmt.Errorf("no catalog match: %w", crawler.ErrExtraction)

const (
	defaultAPIURL   = "https://api.spotify.com/v1"
	tracksPageSize  = 50
	featuresPerCall = 100
	maxBodyBytes    = 4 << 20
)

// Config holds credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Market       string
}

// Limiter spaces API requests.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Client implements crawler.Catalog.
type Client struct {
	http    *http.Client
	apiURL  string
	market  string
	limiter Limiter
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter waits on l before every API request.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client whose HTTP client fetches and refreshes tokens on its
// own. ctx scopes token requests.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client id and secret are required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("spotify token url is required")
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	c := &Client{
		http:   cc.Client(ctx),
		apiURL: apiURL,
		market: cfg.Market,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FindAlbum searches for title by artist and gathers the album's detail,
// tracks, audio features, and artist popularity.
func (c *Client) FindAlbum(ctx context.Context, title, artist string) (music.CatalogAlbum, error) {
	hit, err := c.SearchAlbum(ctx, title, artist)
	if err != nil {
		return music.CatalogAlbum{}, err
	}

	album, err := c.Album(ctx, hit.ID)
	if err != nil {
		return music.CatalogAlbum{}, err
	}
	tracks, err := c.AlbumTracks(ctx, hit.ID)
	if err != nil {
		return music.CatalogAlbum{}, err
	}
	features, err := c.AudioFeatures(ctx, trackIDs(tracks))
	if err != nil {
		return music.CatalogAlbum{}, err
	}

	out := music.CatalogAlbum{
		SpotifyID:        album.ID,
		Popularity:       album.Popularity,
		AvailableMarkets: len(album.AvailableMarkets),
		Copyrights:       len(album.Copyrights),
		ReleaseYear:      releaseYear(album.ReleaseDate),
	}
	if len(album.Artists) > 0 {
		a, err := c.Artist(ctx, album.Artists[0].ID)
		if err != nil {
			return music.CatalogAlbum{}, err
		}
		out.ArtistPopularity = a.Popularity
	}

	for i, t := range tracks {
		track := music.Track{
			SpotifyID: t.ID,
			Name:      t.Name,
			Position:  i + 1,
		}
		track.DurationMs = t.DurationMs
		if f, ok := features[t.ID]; ok {
			track.AudioFeatures = toFeatures(f)
		} else {
			c.logger.Debug("track has no audio features", zap.String("track_id", t.ID))
		}
		out.Tracks = append(out.Tracks, track)
	}
	return out, nil
}

// SearchAlbum returns the best album match.
func (c *Client) SearchAlbum(ctx context.Context, title, artist string) (AlbumSimplified, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("album:%s artist:%s", title, artist))
	q.Set("type", "album")
	q.Set("limit", "1")
	if c.market != "" {
		q.Set("market", c.market)
	}
	var resp SearchAlbumResponse
	if err := c.get(ctx, "search", "/search", q, &resp); err != nil {
		return AlbumSimplified{}, err
	}
	if len(resp.Albums.Items) == 0 {
		return AlbumSimplified{}, fmt.Errorf("%q by %q: %w", title, artist, ErrNoMatch)
	}
	return resp.Albums.Items[0], nil
}

// Album loads the full album object.
func (c *Client) Album(ctx context.Context, id string) (Album, error) {
	var album Album
	if err := c.get(ctx, "album", "/albums/"+url.PathEscape(id), c.marketQuery(), &album); err != nil {
		return Album{}, err
	}
	return album, nil
}

// AlbumTracks loads every track of an album, following pagination.
func (c *Client) AlbumTracks(ctx context.Context, id string) ([]Track, error) {
	var tracks []Track
	offset := 0
	for {
		q := c.marketQuery()
		q.Set("limit", strconv.Itoa(tracksPageSize))
		q.Set("offset", strconv.Itoa(offset))
		var page Paging[Track]
		if err := c.get(ctx, "album_tracks", "/albums/"+url.PathEscape(id)+"/tracks", q, &page); err != nil {
			return nil, err
		}
		tracks = append(tracks, page.Items...)
		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// AudioFeatures loads features for ids, keyed by track ID. Tracks the API
// has no analysis for are absent from the map.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) (map[string]AudioFeatures, error) {
	out := make(map[string]AudioFeatures, len(ids))
	for start := 0; start < len(ids); start += featuresPerCall {
		end := min(start+featuresPerCall, len(ids))
		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))
		var resp audioFeaturesResponse
		if err := c.get(ctx, "audio_features", "/audio-features", q, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.AudioFeatures {
			if f != nil {
				out[f.ID] = *f
			}
		}
	}
	return out, nil
}

// Artist loads the full artist object.
func (c *Client) Artist(ctx context.Context, id string) (Artist, error) {
	var artist Artist
	if err := c.get(ctx, "artist", "/artists/"+url.PathEscape(id), nil, &artist); err != nil {
		return Artist{}, err
	}
	return artist, nil
}

func (c *Client) marketQuery() url.Values {
	q := url.Values{}
	if c.market != "" {
		q.Set("market", c.market)
	}
	return q
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, u); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveCatalogRequest(endpoint, 0)
		return fmt.Errorf("spotify %s: %w", endpoint, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	metrics.ObserveCatalogRequest(endpoint, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read spotify %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("spotify %s: status %d: %s", endpoint, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("spotify %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode spotify %s response: %w", endpoint, err)
	}
	return nil
}

func trackIDs(tracks []Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func toFeatures(f AudioFeatures) music.AudioFeatures {
	return music.AudioFeatures{
		Acousticness:     f.Acousticness,
		Danceability:     f.Danceability,
		DurationMs:       f.DurationMs,
		Energy:           f.Energy,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Loudness:         f.Loudness,
		Mode:             float64(f.Mode),
		Speechiness:      f.Speechiness,
		Tempo:            f.Tempo,
		TimeSignature:    float64(f.TimeSignature),
		Valence:          f.Valence,
	}
}

// releaseYear reads the year from "1997", "1997-05" or "1997-05-21".
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
