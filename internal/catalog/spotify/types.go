package spotify

// AlbumType is the kind of release a catalog album is.
type AlbumType string

// Album types.
const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeCompilation AlbumType = "compilation"
)

// Image is cover or artist artwork.
type Image struct {
	Height int    `json:"height"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
}

// ArtistSimplified is the artist reference embedded in albums and tracks.
type ArtistSimplified struct {
	Href string `json:"href"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// Artist is the full artist object.
type Artist struct {
	ArtistSimplified
	Genres     []string `json:"genres"`
	Images     []Image  `json:"images"`
	Popularity int      `json:"popularity"`
}

// AlbumSimplified is an album as returned by search.
type AlbumSimplified struct {
	AlbumType   AlbumType          `json:"album_type"`
	Artists     []ArtistSimplified `json:"artists"`
	Href        string             `json:"href"`
	ID          string             `json:"id"`
	Images      []Image            `json:"images"`
	Name        string             `json:"name"`
	ReleaseDate string             `json:"release_date"`
	Type        string             `json:"type"`
	URI         string             `json:"uri"`
}

// Copyright is one copyright line of an album.
type Copyright struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Album is the full album object.
type Album struct {
	AlbumSimplified
	AvailableMarkets []string    `json:"available_markets"`
	Copyrights       []Copyright `json:"copyrights"`
	Popularity       int         `json:"popularity"`
}

// Track is a simplified track from an album's track listing.
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TrackNumber int    `json:"track_number"`
	DiscNumber  int    `json:"disc_number"`
	DurationMs  int    `json:"duration_ms"`
}

// AudioFeatures are the analysis values for one track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	DurationMs       int     `json:"duration_ms"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	Valence          float64 `json:"valence"`
}

// Paging is the envelope around list results.
type Paging[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// SearchAlbumResponse is the body of an album search.
type SearchAlbumResponse struct {
	Albums Paging[AlbumSimplified] `json:"albums"`
}

// SearchArtistResponse is the body of an artist search.
type SearchArtistResponse struct {
	Artists Paging[Artist] `json:"artists"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*AudioFeatures `json:"audio_features"`
}

type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
