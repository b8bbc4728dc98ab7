package aggregate

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/JakeFAU/music-crawler/internal/music"
)

// ErrIncompleteAlbum is returned when an album cannot be aggregated because
// its artist was never stored.
var ErrIncompleteAlbum = errors.New("album is missing artist data")

// TrackSummary reduces an album's tracks to one value per audio feature.
// Duration is the album's total length in milliseconds; every other feature
// is the mean across tracks.
type TrackSummary struct {
	Acousticness           float64
	Danceability           float64
	Duration               float64
	Energy                 float64
	Instrumentalness       float64
	Liveness               float64
	Loudness               float64
	Mode                   float64
	Speechiness            float64
	Tempo                  float64
	TimeSignature          float64
	TimeSignatureVariation float64
	Valence                float64
}

// AlbumVector is one row of the aggregate output.
type AlbumVector struct {
	AlbumID int64
	Title   string

	AvailableMarkets float64
	Copyrights       float64
	AlbumPopularity  float64
	ReleaseYear      float64

	Issues      float64
	AlbumLists  float64
	OverallRank float64
	Rating      float64
	Ratings     float64
	Reviews     float64
	YearRank    float64

	Active           float64
	DiscographySize  float64
	ArtistLists      float64
	Members          float64
	Shows            float64
	SoloPerformer    float64
	ArtistPopularity float64

	TrackSummary
}

// SummarizeTracks reduces tracks feature by feature.
func SummarizeTracks(tracks []music.Track) TrackSummary {
	column := func(get func(music.AudioFeatures) float64) []float64 {
		out := make([]float64, len(tracks))
		for i, t := range tracks {
			out[i] = get(t.AudioFeatures)
		}
		return out
	}

	timeSignatures := column(func(f music.AudioFeatures) float64 { return f.TimeSignature })
	meanTimeSignature := Mean(timeSignatures)

	return TrackSummary{
		Acousticness:           Mean(column(func(f music.AudioFeatures) float64 { return f.Acousticness })),
		Danceability:           Mean(column(func(f music.AudioFeatures) float64 { return f.Danceability })),
		Duration:               Sum(column(func(f music.AudioFeatures) float64 { return float64(f.DurationMs) })),
		Energy:                 Mean(column(func(f music.AudioFeatures) float64 { return f.Energy })),
		Instrumentalness:       Mean(column(func(f music.AudioFeatures) float64 { return f.Instrumentalness })),
		Liveness:               Mean(column(func(f music.AudioFeatures) float64 { return f.Liveness })),
		Loudness:               Mean(column(func(f music.AudioFeatures) float64 { return f.Loudness })),
		Mode:                   Mean(column(func(f music.AudioFeatures) float64 { return f.Mode })),
		Speechiness:            Mean(column(func(f music.AudioFeatures) float64 { return f.Speechiness })),
		Tempo:                  Mean(column(func(f music.AudioFeatures) float64 { return f.Tempo })),
		TimeSignature:          meanTimeSignature,
		TimeSignatureVariation: Variance(timeSignatures, meanTimeSignature),
		Valence:                Mean(column(func(f music.AudioFeatures) float64 { return f.Valence })),
	}
}

// Build assembles the raw, unscaled vector for one album.
func Build(detail music.AlbumDetail) (AlbumVector, error) {
	if detail.Artist.ID == 0 {
		return AlbumVector{}, fmt.Errorf("album %d: %w", detail.Album.ID, ErrIncompleteAlbum)
	}
	album, artist, catalog := detail.Album, detail.Artist, detail.Album.Catalog
	return AlbumVector{
		AlbumID: album.ID,
		Title:   album.Title,

		AvailableMarkets: float64(catalog.AvailableMarkets),
		Copyrights:       float64(catalog.Copyrights),
		AlbumPopularity:  float64(catalog.Popularity),
		ReleaseYear:      float64(album.ReleaseYear),

		Issues:      float64(album.IssueCount),
		AlbumLists:  float64(album.ListCount),
		OverallRank: float64(album.OverallRank),
		Rating:      album.Rating,
		Ratings:     float64(album.RatingCount),
		Reviews:     float64(album.ReviewCount),
		YearRank:    float64(album.YearRank),

		Active:           boolFloat(artist.Active),
		DiscographySize:  float64(artist.DiscographyCount),
		ArtistLists:      float64(artist.ListCount),
		Members:          float64(artist.MemberCount),
		Shows:            float64(artist.ShowCount),
		SoloPerformer:    boolFloat(artist.SoloPerformer),
		ArtistPopularity: float64(catalog.ArtistPopularity),

		TrackSummary: SummarizeTracks(detail.Tracks),
	}, nil
}

// Normalize scales a raw vector. Identity fields are carried over.
func Normalize(raw AlbumVector) AlbumVector {
	return AlbumVector{
		AlbumID: raw.AlbumID,
		Title:   raw.Title,

		AvailableMarkets: raw.AvailableMarkets / 80,
		Copyrights:       raw.Copyrights / 2,
		AlbumPopularity:  raw.AlbumPopularity / 100,
		ReleaseYear:      math.Abs(raw.ReleaseYear-1935) / 85,

		Issues:      sqrt0(raw.Issues) / 11,
		AlbumLists:  math.Cbrt(raw.AlbumLists) / 17,
		OverallRank: rankScore(raw.OverallRank),
		Rating:      math.Max(raw.Rating-1, 0) / 3.5,
		Ratings:     math.Cbrt(raw.Ratings-1) / 36,
		Reviews:     sqrt0(raw.Reviews) / 40,
		YearRank:    rankScore(raw.YearRank),

		Active:           raw.Active,
		DiscographySize:  sqrt0(raw.DiscographySize) / 50,
		ArtistLists:      sqrt0(raw.ArtistLists) / 45,
		Members:          sqrt0(raw.Members-1) / 7,
		Shows:            sqrt0(raw.Shows) / 26,
		SoloPerformer:    raw.SoloPerformer,
		ArtistPopularity: raw.ArtistPopularity / 100,

		TrackSummary: TrackSummary{
			Acousticness:           raw.Acousticness,
			Danceability:           raw.Danceability,
			Duration:               sqrt0(raw.Duration) / 7000,
			Energy:                 raw.Energy,
			Instrumentalness:       raw.Instrumentalness,
			Liveness:               raw.Liveness,
			Loudness:               math.Abs(raw.Loudness / 40),
			Mode:                   raw.Mode,
			Speechiness:            sqrt0(raw.Speechiness),
			Tempo:                  math.Abs(raw.Tempo-20) / 155,
			TimeSignature:          math.Abs(raw.TimeSignature-0.75) / 4,
			TimeSignatureVariation: sqrt0(raw.TimeSignatureVariation) / 2,
			Valence:                raw.Valence,
		},
	}
}

// Header lists the CSV column names in Record order.
func Header() []string {
	return []string{
		"album_id", "title",
		"available_markets", "copyrights", "album_popularity", "release_year",
		"issues", "album_lists", "overall_rank", "rating", "ratings", "reviews", "year_rank",
		"active", "discography_size", "artist_lists", "members", "shows", "solo_performer", "artist_popularity",
		"acousticness", "danceability", "duration", "energy", "instrumentalness", "liveness", "loudness",
		"mode", "speechiness", "tempo", "time_signature", "time_signature_variation", "valence",
	}
}

// Record renders v as one CSV row.
func (v AlbumVector) Record() []string {
	values := []float64{
		v.AvailableMarkets, v.Copyrights, v.AlbumPopularity, v.ReleaseYear,
		v.Issues, v.AlbumLists, v.OverallRank, v.Rating, v.Ratings, v.Reviews, v.YearRank,
		v.Active, v.DiscographySize, v.ArtistLists, v.Members, v.Shows, v.SoloPerformer, v.ArtistPopularity,
		v.Acousticness, v.Danceability, v.Duration, v.Energy, v.Instrumentalness, v.Liveness, v.Loudness,
		v.Mode, v.Speechiness, v.Tempo, v.TimeSignature, v.TimeSignatureVariation, v.Valence,
	}
	out := make([]string, 0, len(values)+2)
	out = append(out, strconv.FormatInt(v.AlbumID, 10), v.Title)
	for _, f := range values {
		out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
	}
	return out
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
