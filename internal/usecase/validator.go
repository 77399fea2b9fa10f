package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/domain"
)

var reviewTerms = []string{
	"review", "đánh giá", "nhận xét", "phân tích", "critique",
	"review phim", "đánh giá phim", "phim hay", "phim mới",
	"spoiler", "trailer reaction", "breakdown", "ending explained",
	"tóm tắt phim", "giải thích phim", "kết thúc phim",
	"vus", "vus review", "vus đánh giá", "vus phim", "vus cinema",
	"vus trailer", "vus movie", "vus film", "vus spoiler",
	"vus breakdown", "vus ending", "vus reaction",
}

var movieTerms = []string{
	"phim", "movie", "film", "cinema", "tập", "episode", "season",
	"marvel", "dc", "disney", "netflix", "hollywood", "bollywood",
	"anime", "drama", "series", "thriller", "horror", "comedy",
	"action", "romance", "sci-fi",
}

var excludedTerms = []string{
	"trailer chính thức", "official trailer", "teaser",
	"behind the scene", "making of", "gala", "thảm đỏ",
	"interview", "hậu trường", "news", "tin tức",
	"game", "gameplay", "walkthrough", "speedrun",
	"music video", "mv", "live stream", "livestream",
	"unboxing", "vlog", "daily",
	"reaction only",
}

// ambiguousTerms only match as whole words regardless of length.
var ambiguousTerms = []string{
	"game", "gameplay", "walkthrough", "speedrun", "gala", "news", "vlog", "daily", "teaser",
}

// QualityRules holds the admission thresholds.
type QualityRules struct {
	MinTitleLength int
	MinViews       int64
	MinDuration    int
	MaxDuration    int // 0 = unlimited
	Blacklist      []string
}

// QualityRulesFromConfig extracts the admission thresholds from the application config.
func QualityRulesFromConfig(cfg *config.Config) QualityRules {
	return QualityRules{
		MinTitleLength: cfg.MinTitleLength,
		MinViews:       cfg.MinViews,
		MinDuration:    cfg.MinDuration,
		MaxDuration:    cfg.MaxDuration,
		Blacklist:      cfg.Blacklist,
	}
}

// QualityValidator decides whether a candidate is a legitimate movie review worth ingesting.
type QualityValidator struct {
	rules    QualityRules
	review   *vocabulary
	movie    *vocabulary
	excluded *vocabulary
}

// NewQualityValidator builds the keyword automata once; the validator is safe for concurrent use.
func NewQualityValidator(rules QualityRules) *QualityValidator {
	excluded := append(append([]string(nil), excludedTerms...), rules.Blacklist...)
	forced := append(append([]string(nil), ambiguousTerms...), rules.Blacklist...)

	return &QualityValidator{
		rules:    rules,
		review:   newVocabulary(reviewTerms),
		movie:    newVocabulary(movieTerms),
		excluded: newVocabulary(excluded, forced...),
	}
}

// Validate evaluates every rule and records a reason for each one that fails.
func (v *QualityValidator) Validate(c domain.Candidate) domain.Verdict {
	verdict := domain.Verdict{Accepted: true}

	if problems := v.reviewProblems(c.Title, c.Description); len(problems) > 0 {
		verdict.Reject(fmt.Sprintf("Not a movie review video (%s)", strings.Join(problems, " + ")))
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(c.Title)); n < v.rules.MinTitleLength {
		verdict.Reject(fmt.Sprintf("Title too short: %d chars (minimum %d)", n, v.rules.MinTitleLength))
	}

	if utf8.RuneCountInString(ExtractMovieName(c.Title)) < 2 {
		verdict.Reject("Cannot extract movie name")
	}

	if c.ViewCount < v.rules.MinViews {
		verdict.Reject(fmt.Sprintf("Low view count: %d (minimum %d)", c.ViewCount, v.rules.MinViews))
	}

	if c.Duration < v.rules.MinDuration {
		verdict.Reject(fmt.Sprintf("Too short: %ds (minimum %ds)", c.Duration, v.rules.MinDuration))
	}
	if v.rules.MaxDuration > 0 && c.Duration > v.rules.MaxDuration {
		verdict.Reject(fmt.Sprintf("Too long: %ds (maximum %ds)", c.Duration, v.rules.MaxDuration))
	}

	if strings.TrimSpace(c.Channel) == "" {
		verdict.Reject("Missing channel name")
	}

	return verdict
}

// IsMovieReview reports whether the text reads like a movie review.
func (v *QualityValidator) IsMovieReview(title, description string) bool {
	return len(v.reviewProblems(title, description)) == 0
}

func (v *QualityValidator) reviewProblems(title, description string) []string {
	text := foldText(title + " " + description)

	var problems []string
	if !v.review.contains(text) {
		problems = append(problems, "no review keywords")
	}
	if !v.movie.contains(text) {
		problems = append(problems, "no movie keywords")
	}
	if v.excluded.contains(text) {
		problems = append(problems, "has excluded keywords")
	}
	return problems
}

// foldText prepares free text for keyword matching.
func foldText(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}
