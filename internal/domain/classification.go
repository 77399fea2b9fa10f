package domain

import (
	"context"
	"errors"
	"strings"
)

// MovieType distinguishes standalone films from episodic content.
type MovieType string

const (
	MovieTypeMovie  MovieType = "movie"
	MovieTypeSeries MovieType = "series"
)

// Countries.
const (
	CountryUS       = "Mỹ"
	CountryKorea    = "Hàn Quốc"
	CountryJapan    = "Nhật Bản"
	CountryChina    = "Trung Quốc"
	CountryVietnam  = "Việt Nam"
	CountryThailand = "Thái Lan"
	CountryIndia    = "Ấn Độ"
	CountryUK       = "Anh"
	CountryFrance   = "Pháp"
	CountryUnknown  = "Unknown"
)

// Genres.
const (
	GenreSuperhero   = "Siêu anh hùng"
	GenreSciFi       = "Viễn tưởng"
	GenreAnimation   = "Hoạt hình"
	GenreHorror      = "Kinh dị"
	GenreAction      = "Hành động"
	GenreComedy      = "Hài hước"
	GenreRomance     = "Tình cảm"
	GenreAdventure   = "Phiêu lưu"
	GenrePsychology  = "Tâm lý"
	GenreMythology   = "Thần thoại"
	GenreDrama       = "Chính kịch"
	GenreUnknown     = "Unknown"
	UnknownMovieName = "Unknown Movie"
)

// EmbeddingGenres is the fixed label set scored by embedding-based genre classifiers.
var EmbeddingGenres = []string{
	GenreAction, GenreHorror, GenreSciFi, GenreRomance, GenreComedy,
	GenreDrama, GenreAnimation, GenreAdventure, GenrePsychology, GenreMythology,
}

// ErrClassifierUnavailable is returned by classification capabilities that are not ready yet.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Classification is the country / genre / series structure assigned to a candidate.
type Classification struct {
	Country       string
	Genre         string
	MovieType     MovieType
	SeriesName    string
	EpisodeNumber int
}

// DefaultClassification is what a candidate gets when nothing can be inferred.
func DefaultClassification() Classification {
	return Classification{
		Country:   CountryUnknown,
		Genre:     GenreUnknown,
		MovieType: MovieTypeMovie,
	}
}

// IsSeries reports whether the classification describes episodic content.
func (c Classification) IsSeries() bool {
	return c.MovieType == MovieTypeSeries
}

// Normalize fills defaults and enforces the series invariants: a series always has a name and
// an episode number is either unset (0) or at least 1.
func (c Classification) Normalize(title string) Classification {
	if c.Country == "" {
		c.Country = CountryUnknown
	}
	if c.Genre == "" {
		c.Genre = GenreUnknown
	}
	if c.MovieType == "" {
		c.MovieType = MovieTypeMovie
	}
	if c.EpisodeNumber < 1 {
		c.EpisodeNumber = 0
	}
	if c.IsSeries() {
		c.SeriesName = strings.TrimSpace(c.SeriesName)
		if c.SeriesName == "" {
			c.SeriesName = strings.TrimSpace(title)
		}
		if c.SeriesName == "" {
			c.SeriesName = UnknownMovieName
		}
	} else {
		c.SeriesName = ""
		c.EpisodeNumber = 0
	}
	return c
}

// Classifier assigns a classification from text. It never fails: internal faults degrade to
// default categories.
type Classifier interface {
	Classify(ctx context.Context, title, description string, tags []string) Classification
}

// GenreScorer is a black-box text to genre label capability.
type GenreScorer interface {
	ClassifyGenre(ctx context.Context, text string) (string, error)
}

// Encoder maps texts into a shared vector space.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float64, error)
}
