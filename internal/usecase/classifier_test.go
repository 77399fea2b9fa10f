package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auto_update_reviews/internal/domain"
)

func TestKeywordClassifierCountryAndGenre(t *testing.T) {
	k := NewKeywordClassifier(zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		title   string
		desc    string
		country string
		genre   string
	}{
		{"Review Deadpool & Wolverine - Phim hành động đỉnh cao", "", domain.CountryUS, domain.GenreAction},
		{"Review Avengers Endgame", "Phim siêu anh hùng Marvel", domain.CountryUS, domain.GenreSuperhero},
		{"Đánh giá Parasite", "Phim tâm lý Hàn Quốc", domain.CountryKorea, domain.GenrePsychology},
		{"Review Spirited Away", "Anime Ghibli huyền thoại", domain.CountryJapan, domain.GenreAnimation},
		{"Review Mai", "Phim tình cảm Việt Nam", domain.CountryVietnam, domain.GenreRomance},
		{"Review phim hay", "", domain.CountryUnknown, domain.GenreUnknown},
		{"Review phim anh hùng hay nhất", "", domain.CountryUnknown, domain.GenreUnknown},
		{"Review phim pháp sư", "", domain.CountryUnknown, domain.GenreUnknown},
		{"Review Ex Machina", "Phim khoa học viễn tưởng", domain.CountryUnknown, domain.GenreSciFi},
		{"Review Indiana Jones", "Phim phiêu lưu", domain.CountryUnknown, domain.GenreAdventure},
		{"Review Bridget Jones", "Phim nhật ký tình yêu", domain.CountryUnknown, domain.GenreRomance},
		{"Review Amélie", "Phim tình cảm nước Pháp", domain.CountryFrance, domain.GenreRomance},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := k.Classify(ctx, tt.title, tt.desc, nil)
			assert.Equal(t, tt.country, got.Country)
			assert.Equal(t, tt.genre, got.Genre)
		})
	}
}

func TestKeywordClassifierUsesTags(t *testing.T) {
	k := NewKeywordClassifier(nil)
	got := k.Classify(context.Background(), "Review The Conjuring", "", []string{"horror", "usa"})
	assert.Equal(t, domain.GenreHorror, got.Genre)
	assert.Equal(t, domain.CountryUS, got.Country)
}

func TestKeywordClassifierSeries(t *testing.T) {
	k := NewKeywordClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		title   string
		desc    string
		series  string
		episode int
	}{
		{"vietnamese episode", "Review Squid Game Tập 5", "", "Review Squid Game", 5},
		{"season episode code", "Breaking Bad S01E05 review", "", "Breaking Bad review", 5},
		{"english episode", "Review The Last of Us - Episode 3", "", "Review The Last of Us", 3},
		{"episode in description", "Review Reply 1988", "Phân tích tập 12 cảm động", "Review Reply 1988", 12},
		{"indicator only", "Review phim bộ Hoa Ngữ cung đấu", "", "Review phim bộ Hoa Ngữ cung đấu", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.Classify(ctx, tt.title, tt.desc, nil)
			assert.Equal(t, domain.MovieTypeSeries, got.MovieType)
			assert.Equal(t, tt.series, got.SeriesName)
			assert.Equal(t, tt.episode, got.EpisodeNumber)
		})
	}

	movie := k.Classify(ctx, "Review Inception", "Phim khoa học viễn tưởng", nil)
	assert.Equal(t, domain.MovieTypeMovie, movie.MovieType)
	assert.Empty(t, movie.SeriesName)
	assert.Zero(t, movie.EpisodeNumber)
	assert.Equal(t, domain.GenreSciFi, movie.Genre)
}

// fakeEncoder returns one-hot vectors: labels map to their own axis and free text to the axis of
// the first label keyword it contains.
type fakeEncoder struct {
	labels   []string
	keywords map[string]string
	err      error
	calls    int
}

func (f *fakeEncoder) Encode(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *fakeEncoder) vector(text string) []float64 {
	vec := make([]float64, len(f.labels))
	for i, label := range f.labels {
		if text == label {
			vec[i] = 1
			return vec
		}
	}
	lower := strings.ToLower(text)
	for kw, label := range f.keywords {
		if strings.Contains(lower, kw) {
			for i, l := range f.labels {
				if l == label {
					vec[i] = 1
				}
			}
			return vec
		}
	}
	return vec
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		labels:   domain.EmbeddingGenres,
		keywords: map[string]string{"zombie": domain.GenreHorror},
	}
}

func TestEmbeddingGenreClassifier(t *testing.T) {
	enc := newFakeEncoder()
	e := NewEmbeddingGenreClassifier(enc)
	assert.False(t, e.Ready())

	require.NoError(t, e.Warmup(context.Background()))
	assert.True(t, e.Ready())

	genre, err := e.ClassifyGenre(context.Background(), "Review Train to Busan zombie")
	require.NoError(t, err)
	assert.Equal(t, domain.GenreHorror, genre)

	_, err = e.ClassifyGenre(context.Background(), "another zombie film")
	require.NoError(t, err)
	assert.Equal(t, 3, enc.calls, "label vectors are encoded once")
}

func TestEmbeddingGenreClassifierUnavailable(t *testing.T) {
	e := NewEmbeddingGenreClassifier(nil)
	_, err := e.ClassifyGenre(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)

	broken := NewEmbeddingGenreClassifier(&fakeEncoder{err: errors.New("connection refused")})
	_, err = broken.ClassifyGenre(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
	assert.False(t, broken.Ready())
}

func TestEmbeddingGenreClassifierBacksOffAfterLabelFailure(t *testing.T) {
	enc := newFakeEncoder()
	enc.err = errors.New("connection refused")
	e := NewEmbeddingGenreClassifier(enc)

	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.ClassifyGenre(ctx, "Review Train to Busan zombie")
		assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
	}
	assert.Equal(t, 1, enc.calls, "encoder is not retried inside the backoff window")

	enc.err = nil
	now = now.Add(labelRetryBackoff + time.Second)

	genre, err := e.ClassifyGenre(ctx, "Review Train to Busan zombie")
	require.NoError(t, err)
	assert.Equal(t, domain.GenreHorror, genre)
	assert.Equal(t, 3, enc.calls)
	assert.True(t, e.Ready())
}

type panickingScorer struct{}

func (panickingScorer) ClassifyGenre(context.Context, string) (string, error) {
	panic("model crashed")
}

type staticScorer struct {
	genre string
	err   error
}

func (s staticScorer) ClassifyGenre(context.Context, string) (string, error) {
	return s.genre, s.err
}

func TestCompositeClassifierFallbacks(t *testing.T) {
	ctx := context.Background()
	title := "Review Deadpool & Wolverine - Phim hành động đỉnh cao"
	keywords := NewKeywordClassifier(nil)

	tests := []struct {
		name   string
		scorer domain.GenreScorer
		genre  string
	}{
		{"no scorer keeps keyword genre", nil, domain.GenreAction},
		{"scorer genre wins", staticScorer{genre: domain.GenreComedy}, domain.GenreComedy},
		{"unavailable scorer", staticScorer{err: domain.ErrClassifierUnavailable}, domain.GenreUnknown},
		{"failing scorer", staticScorer{err: errors.New("timeout")}, domain.GenreUnknown},
		{"empty answer", staticScorer{}, domain.GenreUnknown},
		{"panicking scorer", panickingScorer{}, domain.GenreUnknown},
		{"embedding scorer not warmed up", NewEmbeddingGenreClassifier(nil), domain.GenreUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeClassifier(keywords, tt.scorer, zaptest.NewLogger(t))
			got := c.Classify(ctx, title, "", nil)
			assert.Equal(t, tt.genre, got.Genre)
			assert.Equal(t, domain.CountryUS, got.Country)
			assert.Equal(t, domain.MovieTypeMovie, got.MovieType)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

func TestClassificationNormalize(t *testing.T) {
	c := domain.Classification{MovieType: domain.MovieTypeSeries, EpisodeNumber: -2}.Normalize("  Loki  ")
	assert.Equal(t, "Loki", c.SeriesName)
	assert.Zero(t, c.EpisodeNumber)
	assert.Equal(t, domain.CountryUnknown, c.Country)

	m := domain.Classification{MovieType: domain.MovieTypeMovie, SeriesName: "x", EpisodeNumber: 3}.Normalize("t")
	assert.Empty(t, m.SeriesName)
	assert.Zero(t, m.EpisodeNumber)
}
