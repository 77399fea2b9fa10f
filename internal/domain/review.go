package domain

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRecord is returned when a record with the same identity key already exists.
var ErrDuplicateRecord = errors.New("review already exists")

// VideoTypeYouTube is the only video type produced by the ingestion pipeline.
const VideoTypeYouTube = "youtube"

// Review is a persisted movie review record
type Review struct {
	// ID is the internal identifier
	ID string `json:"id"`

	// VideoID is the platform video id (identity key)
	VideoID string `json:"video_id"`

	// Title is the video title
	Title string `json:"title"`

	// MovieTitle is the movie name extracted from the title
	MovieTitle string `json:"movie_title"`

	// Reviewer is the channel that published the review
	Reviewer string `json:"reviewer_name"`

	// SourceURL is the canonical watch URL, also unique
	SourceURL string `json:"video_url"`

	// VideoType is the hosting platform
	VideoType string `json:"video_type"`

	// Description is the video description
	Description string `json:"description"`

	// ThumbnailURL is the thumbnail shown in listings
	ThumbnailURL string `json:"thumbnail_url"`

	// Duration is the video length in seconds
	Duration int `json:"duration"`

	// ViewCount is the view count at ingestion time
	ViewCount int64 `json:"view_count"`

	// Rating is the editorial rating
	Rating int `json:"rating"`

	// Published controls visibility in the presentation layer
	Published bool `json:"published"`

	// Country, Genre, MovieType, SeriesName and EpisodeNumber hold the classification
	Country       string    `json:"country"`
	Genre         string    `json:"genre"`
	MovieType     MovieType `json:"movie_type"`
	SeriesName    string    `json:"series_name"`
	EpisodeNumber int       `json:"episode_number"`

	// PublishedAt is when the video was published on the platform
	PublishedAt time.Time `json:"published_at"`

	// CreatedAt is when the record was ingested
	CreatedAt time.Time `json:"created_at"`
}

// IdentityKey returns the key used for exact-duplicate checks.
func (r Review) IdentityKey() string {
	return IdentityKey(r.VideoID, r.SourceURL)
}

// Classification returns the classification fields as a value.
func (r Review) Classification() Classification {
	return Classification{
		Country:       r.Country,
		Genre:         r.Genre,
		MovieType:     r.MovieType,
		SeriesName:    r.SeriesName,
		EpisodeNumber: r.EpisodeNumber,
	}
}

// ApplyClassification copies classification fields into the record.
func (r *Review) ApplyClassification(c Classification) {
	r.Country = c.Country
	r.Genre = c.Genre
	r.MovieType = c.MovieType
	r.SeriesName = c.SeriesName
	r.EpisodeNumber = c.EpisodeNumber
}

// ReviewRepository defines the record store operations the pipeline needs
type ReviewRepository interface {
	// FindByIdentity returns the record with the given identity key, or nil
	FindByIdentity(ctx context.Context, key string) (*Review, error)

	// Insert stores a new record and returns its id
	Insert(ctx context.Context, review *Review) (string, error)

	// ListRecent returns up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*Review, error)

	// Count returns the total number of records
	Count(ctx context.Context) (int, error)
}
