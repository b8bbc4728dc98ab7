// Package music defines the entities discovered by the crawler and written to
// the store. Natural keys (page URLs, usernames, review identifiers) identify
// entities across runs; ID is the store-assigned identifier and is zero until
// the entity has been persisted.
package music

// Gender is the self-reported gender on a profile page.
type Gender string

// Known gender values. GenderUnknown is used when the profile omits it.
const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// ParseGender maps profile text to a Gender.
func ParseGender(s string) Gender {
	switch s {
	case "Male", "male", "M":
		return GenderMale
	case "Female", "female", "F":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Artist is an RYM artist page.
type Artist struct {
	ID               int64  `json:"id"`
	URL              string `json:"url"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	MemberCount      int    `json:"member_count"`
	SoloPerformer    bool   `json:"solo_performer"`
	DiscographyCount int    `json:"discography_count"`
	ListCount        int    `json:"list_count"`
	ShowCount        int    `json:"show_count"`
}

// AudioFeatures are the per-track numeric inputs to album aggregation.
type AudioFeatures struct {
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	DurationMs       int     `json:"duration_ms"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             float64 `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    float64 `json:"time_signature"`
	Valence          float64 `json:"valence"`
}

// Track is one catalog track belonging to an album.
type Track struct {
	ID        int64  `json:"id"`
	AlbumID   int64  `json:"album_id"`
	SpotifyID string `json:"spotify_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	AudioFeatures
}

// CatalogAlbum is the album as resolved against the music catalog API.
type CatalogAlbum struct {
	SpotifyID        string  `json:"spotify_id"`
	Popularity       int     `json:"popularity"`
	AvailableMarkets int     `json:"available_markets"`
	Copyrights       int     `json:"copyrights"`
	ReleaseYear      int     `json:"release_year"`
	ArtistPopularity int     `json:"artist_popularity"`
	Tracks           []Track `json:"tracks"`
}

// Album is an RYM release page joined with its catalog data.
type Album struct {
	ID          int64        `json:"id"`
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	ArtistID    int64        `json:"artist_id"`
	ReleaseYear int          `json:"release_year"`
	Rating      float64      `json:"rating"`
	RatingCount int          `json:"rating_count"`
	ReviewCount int          `json:"review_count"`
	ListCount   int          `json:"list_count"`
	IssueCount  int          `json:"issue_count"`
	OverallRank int          `json:"overall_rank"`
	YearRank    int          `json:"year_rank"`
	Catalog     CatalogAlbum `json:"catalog"`
}

// AlbumDetail is an album loaded together with its artist and tracks.
type AlbumDetail struct {
	Album  Album   `json:"album"`
	Artist Artist  `json:"artist"`
	Tracks []Track `json:"tracks"`
}

// Profile is an RYM user.
type Profile struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Age    int    `json:"age"`
	Gender Gender `json:"gender"`
}

// Date is a calendar date as printed on a review listing.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Review is one rating left by a profile on an album.
type Review struct {
	ID         int64   `json:"id"`
	Identifier string  `json:"identifier"`
	AlbumID    int64   `json:"album_id"`
	ProfileID  int64   `json:"profile_id"`
	Score      float64 `json:"score"`
	Date       Date    `json:"date"`
}
