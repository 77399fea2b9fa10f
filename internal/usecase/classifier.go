package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"auto_update_reviews/internal/domain"
)

// Country keywords, most specific first. Bare words that double as common Vietnamese words
// ("anh", "pháp", "trung", "nhật") only appear inside phrases that name the country.
var countryTable = []category{
	{domain.CountryVietnam, []string{"việt nam", "phim việt", "vietnam", "vietnamese"}},
	{domain.CountryKorea, []string{"hàn quốc", "phim hàn", "korea", "korean", "k-drama", "kdrama"}},
	{domain.CountryJapan, []string{"nhật bản", "japan", "japanese", "anime", "ghibli"}},
	{domain.CountryChina, []string{"trung quốc", "hoa ngữ", "china", "chinese", "cdrama"}},
	{domain.CountryThailand, []string{"thái lan", "phim thái", "thailand", "thai"}},
	{domain.CountryIndia, []string{"ấn độ", "bollywood", "india", "indian"}},
	{domain.CountryUK, []string{"anh quốc", "nước anh", "british", "england", "uk"}},
	{domain.CountryFrance, []string{"nước pháp", "pháp quốc", "french", "france"}},
	{domain.CountryUS, []string{
		"mỹ", "hollywood", "american", "usa", "marvel", "dc", "disney", "pixar",
		"deadpool", "wolverine", "avengers", "batman", "superman", "spider-man", "spiderman",
	}},
}

// Genre keywords, ordered so specific genres are checked before generic ones.
var genreTable = []category{
	{domain.GenreSuperhero, []string{"siêu anh hùng", "superhero", "marvel", "dc", "mcu", "dceu"}},
	{domain.GenreAnimation, []string{"hoạt hình", "animation", "animated", "anime", "pixar", "ghibli", "cartoon"}},
	{domain.GenreSciFi, []string{"khoa học viễn tưởng", "viễn tưởng", "sci-fi", "science fiction", "người ngoài hành tinh"}},
	{domain.GenreHorror, []string{"kinh dị", "horror", "ma quái", "zombie"}},
	{domain.GenreAction, []string{"hành động", "action", "võ thuật", "bắn súng"}},
	{domain.GenreComedy, []string{"hài hước", "phim hài", "comedy", "vui nhộn"}},
	{domain.GenreRomance, []string{"tình cảm", "lãng mạn", "romance", "ngôn tình", "tình yêu"}},
	{domain.GenreAdventure, []string{"phiêu lưu", "adventure", "thám hiểm"}},
	{domain.GenreMythology, []string{"thần thoại", "mythology", "fantasy"}},
	{domain.GenrePsychology, []string{"tâm lý", "tâm lí", "psychological", "thriller"}},
	{domain.GenreDrama, []string{"chính kịch", "drama"}},
}

// episodePatterns are tried in order; the last capture group is the episode number.
var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bs(\d{1,2})\s*e(\d{1,3})\b`),
	regexp.MustCompile(`(?i)tập\s*(\d+)`),
	regexp.MustCompile(`(?i)\bepisode\s*(\d+)`),
	regexp.MustCompile(`(?i)\bep\.?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bseason\s*(\d+)`),
	regexp.MustCompile(`(?i)phần\s*(\d+)`),
	regexp.MustCompile(`(?i)\bpart\s*(\d+)`),
}

var seriesIndicators = []string{"season", "series", "phần", "phim bộ", "saga"}

const seriesNameSeparators = " \t-:|–—,."

// KeywordClassifier assigns country, genre and series structure from keyword heuristics.
type KeywordClassifier struct {
	countries *keywordTable
	genres    *keywordTable
	series    *vocabulary
	logger    *zap.Logger
}

// NewKeywordClassifier builds the keyword tables.
func NewKeywordClassifier(logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{
		countries: newKeywordTable(countryTable, domain.CountryUnknown),
		genres:    newKeywordTable(genreTable, domain.GenreUnknown),
		series:    newVocabulary(seriesIndicators),
		logger:    logger,
	}
}

// Classify never fails; a fault inside the heuristics yields the default classification.
func (k *KeywordClassifier) Classify(_ context.Context, title, description string, tags []string) (result domain.Classification) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("keyword classification panicked", zap.Any("panic", r), zap.String("title", title))
			result = domain.DefaultClassification()
		}
	}()

	text := foldText(strings.Join([]string{title, description, strings.Join(tags, " ")}, " "))

	result = domain.DefaultClassification()
	result.Country = k.countries.lookup(text)
	result.Genre = k.genres.lookup(text)
	k.detectSeries(&result, title, description, text)

	return result.Normalize(title)
}

// ClassifyGenre exposes the genre heuristic as a domain.GenreScorer.
func (k *KeywordClassifier) ClassifyGenre(_ context.Context, text string) (string, error) {
	return k.genres.lookup(foldText(text)), nil
}

func (k *KeywordClassifier) detectSeries(c *domain.Classification, title, description, folded string) {
	for _, pattern := range episodePatterns {
		if loc := pattern.FindStringSubmatchIndex(title); loc != nil {
			c.MovieType = domain.MovieTypeSeries
			c.EpisodeNumber = lastGroupNumber(title, loc)
			c.SeriesName = seriesNameWithout(title, loc[0], loc[1])
			return
		}
		if loc := pattern.FindStringSubmatchIndex(description); loc != nil {
			c.MovieType = domain.MovieTypeSeries
			c.EpisodeNumber = lastGroupNumber(description, loc)
			c.SeriesName = strings.TrimSpace(title)
			return
		}
	}

	if k.series.contains(folded) {
		c.MovieType = domain.MovieTypeSeries
		c.SeriesName = strings.TrimSpace(title)
	}
}

func lastGroupNumber(s string, loc []int) int {
	start, end := loc[len(loc)-2], loc[len(loc)-1]
	if start < 0 {
		return 0
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0
	}
	return n
}

func seriesNameWithout(title string, start, end int) string {
	name := strings.Trim(title[:start], seriesNameSeparators) + " " + strings.Trim(title[end:], seriesNameSeparators)
	name = strings.Trim(strings.Join(strings.Fields(name), " "), seriesNameSeparators)
	if name == "" {
		return strings.TrimSpace(title)
	}
	return name
}

// labelRetryBackoff is how long a failed label encoding is reused before the encoder is asked again.
const labelRetryBackoff = time.Minute

// EmbeddingGenreClassifier picks the genre label whose embedding is closest to the text's.
type EmbeddingGenreClassifier struct {
	encoder domain.Encoder
	labels  []string
	now     func() time.Time

	mu       sync.Mutex
	vectors  [][]float64
	failedAt time.Time
	failure  error
}

// NewEmbeddingGenreClassifier scores text against labels, or the standard genre set when none are given.
func NewEmbeddingGenreClassifier(encoder domain.Encoder, labels ...string) *EmbeddingGenreClassifier {
	if len(labels) == 0 {
		labels = domain.EmbeddingGenres
	}
	return &EmbeddingGenreClassifier{
		encoder: encoder,
		labels:  append([]string(nil), labels...),
		now:     time.Now,
	}
}

// Warmup encodes the label set so the first classification does not pay for it.
func (e *EmbeddingGenreClassifier) Warmup(ctx context.Context) error {
	_, err := e.labelVectors(ctx)
	return err
}

// Ready reports whether label vectors are cached.
func (e *EmbeddingGenreClassifier) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vectors != nil
}

// ClassifyGenre returns domain.ErrClassifierUnavailable until the label set has been encoded.
func (e *EmbeddingGenreClassifier) ClassifyGenre(ctx context.Context, text string) (string, error) {
	labels, err := e.labelVectors(ctx)
	if err != nil {
		return "", err
	}

	encoded, err := e.encoder.Encode(ctx, []string{text})
	if err != nil {
		return "", fmt.Errorf("encode text: %w", err)
	}
	if len(encoded) != 1 {
		return "", fmt.Errorf("encode text: expected 1 vector, got %d", len(encoded))
	}

	best, bestScore := -1, math.Inf(-1)
	for i, vec := range labels {
		if score := CosineSimilarity(encoded[0], vec); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return "", domain.ErrClassifierUnavailable
	}
	return e.labels[best], nil
}

func (e *EmbeddingGenreClassifier) labelVectors(ctx context.Context) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vectors != nil {
		return e.vectors, nil
	}
	if e.encoder == nil {
		return nil, domain.ErrClassifierUnavailable
	}

	if e.failure != nil && e.now().Sub(e.failedAt) < labelRetryBackoff {
		return nil, e.failure
	}

	vectors, err := e.encoder.Encode(ctx, e.labels)
	if err == nil && len(vectors) != len(e.labels) {
		err = fmt.Errorf("expected %d label vectors, got %d", len(e.labels), len(vectors))
	}
	if err != nil {
		e.failedAt = e.now()
		e.failure = fmt.Errorf("%w: encode labels: %v", domain.ErrClassifierUnavailable, err)
		return nil, e.failure
	}
	e.failure = nil
	e.vectors = vectors
	return vectors, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, 0 when either is empty,
// zero-length or the dimensions differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CompositeClassifier takes country and series from keyword heuristics and genre from a pluggable scorer.
type CompositeClassifier struct {
	keywords *KeywordClassifier
	genre    domain.GenreScorer
	logger   *zap.Logger
}

// NewCompositeClassifier combines the heuristics with a genre scorer; a nil scorer keeps the keyword genre.
func NewCompositeClassifier(keywords *KeywordClassifier, genre domain.GenreScorer, logger *zap.Logger) *CompositeClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keywords == nil {
		keywords = NewKeywordClassifier(logger)
	}
	return &CompositeClassifier{keywords: keywords, genre: genre, logger: logger}
}

// Classify never fails: scorer errors and panics map the genre to Unknown.
func (c *CompositeClassifier) Classify(ctx context.Context, title, description string, tags []string) domain.Classification {
	result := c.keywords.Classify(ctx, title, description, tags)
	if c.genre == nil {
		return result
	}

	text := strings.TrimSpace(strings.Join([]string{title, description, strings.Join(tags, " ")}, " "))
	genre, err := c.scoreGenre(ctx, text)
	switch {
	case errors.Is(err, domain.ErrClassifierUnavailable):
		c.logger.Warn("genre classifier not ready, using default genre", zap.String("title", title), zap.Error(err))
		result.Genre = domain.GenreUnknown
	case err != nil:
		c.logger.Error("genre classification failed", zap.String("title", title), zap.Error(err))
		result.Genre = domain.GenreUnknown
	case genre == "":
		result.Genre = domain.GenreUnknown
	default:
		result.Genre = genre
	}
	return result.Normalize(title)
}

func (c *CompositeClassifier) scoreGenre(ctx context.Context, text string) (genre string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("genre scorer panicked: %v", r)
		}
	}()
	return c.genre.ClassifyGenre(ctx, text)
}
