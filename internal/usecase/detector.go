package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/domain"
)

// Corroborating thresholds for the combined moderate signal.
const (
	moderateTitleSimilarity       = 0.6
	moderateMovieSimilarity       = 0.7
	moderateDescriptionSimilarity = 0.6
)

// DuplicateRule names the condition that flagged a duplicate.
type DuplicateRule string

const (
	RuleIdentity     DuplicateRule = "identity"
	RuleTitle        DuplicateRule = "title"
	RuleMovieChannel DuplicateRule = "movie_channel"
	RuleDescription  DuplicateRule = "description"
	RuleCombined     DuplicateRule = "combined"
)

// DuplicateStage tells which pool a duplicate was found in.
type DuplicateStage string

const (
	StageStore DuplicateStage = "store"
	StageBatch DuplicateStage = "batch"
)

// Thresholds are the strong-signal similarity cut-offs; a similarity must exceed them.
type Thresholds struct {
	Title       float64
	Description float64
	Movie       float64
}

// Match explains why a candidate was flagged as a duplicate.
type Match struct {
	Rule        DuplicateRule
	Against     string // identity key of the earlier entry
	Title       float64
	Movie       float64
	Description float64
}

// Reason renders the match for logs and diagnostics.
func (m Match) Reason() string {
	switch m.Rule {
	case RuleIdentity:
		return fmt.Sprintf("same video id %s", m.Against)
	case RuleTitle:
		return fmt.Sprintf("high title similarity %.2f with %s", m.Title, m.Against)
	case RuleMovieChannel:
		return fmt.Sprintf("same movie (%.2f) and channel as %s", m.Movie, m.Against)
	case RuleDescription:
		return fmt.Sprintf("high description similarity %.2f with %s", m.Description, m.Against)
	default:
		return fmt.Sprintf("multiple similarities (T:%.2f, M:%.2f, D:%.2f) with %s",
			m.Title, m.Movie, m.Description, m.Against)
	}
}

// Entry is a pre-normalized record in a comparison pool.
type Entry struct {
	Key         string
	Title       string
	Movie       string
	Description string
	Channel     string
}

// NewEntry normalizes the comparable fields of a record once so it can be compared many times.
func NewEntry(key, title, description, channel string) Entry {
	return Entry{
		Key:         strings.TrimSpace(key),
		Title:       NormalizeText(title),
		Movie:       NormalizeText(ExtractMovieName(title)),
		Description: NormalizeText(description),
		Channel:     strings.TrimSpace(channel),
	}
}

// CandidateEntry builds a pool entry from a candidate.
func CandidateEntry(c domain.Candidate) Entry {
	return NewEntry(c.IdentityKey(), c.Title, c.Description, c.Channel)
}

// ReviewEntry builds a pool entry from a stored review.
func ReviewEntry(r *domain.Review) Entry {
	return NewEntry(r.IdentityKey(), r.Title, r.Description, r.Reviewer)
}

// IsDuplicate compares an entry against a pool; the first rule that fires wins.
// Empty descriptions and movie names never contribute a similarity signal.
func IsDuplicate(e Entry, pool []Entry, th Thresholds) (bool, Match) {
	for _, other := range pool {
		if match, ok := compare(e, other, th); ok {
			return true, match
		}
	}
	return false, Match{}
}

func compare(e, other Entry, th Thresholds) (Match, bool) {
	if e.Key != "" && e.Key == other.Key {
		return Match{Rule: RuleIdentity, Against: other.Key, Title: 1, Movie: 1, Description: 1}, true
	}

	m := Match{
		Against: other.Key,
		Title:   normalizedSimilarity(e.Title, other.Title),
	}
	if e.Movie != "" && other.Movie != "" {
		m.Movie = normalizedSimilarity(e.Movie, other.Movie)
	}
	if e.Description != "" && other.Description != "" {
		m.Description = normalizedSimilarity(e.Description, other.Description)
	}
	sameChannel := e.Channel != "" && other.Channel != "" && strings.EqualFold(e.Channel, other.Channel)

	switch {
	case m.Title > th.Title:
		m.Rule = RuleTitle
	case m.Movie > th.Movie && sameChannel:
		m.Rule = RuleMovieChannel
	case m.Description > th.Description:
		m.Rule = RuleDescription
	case m.Title > moderateTitleSimilarity && (m.Movie > moderateMovieSimilarity || m.Description > moderateDescriptionSimilarity):
		m.Rule = RuleCombined
	default:
		return Match{}, false
	}
	return m, true
}

// Rejection records a candidate dropped by the duplicate detector.
type Rejection struct {
	Candidate domain.Candidate
	Stage     DuplicateStage
	Match     Match
}

// DuplicateDetector filters candidates that duplicate stored records or each other.
type DuplicateDetector struct {
	reviews     domain.ReviewRepository
	store       Thresholds
	batch       Thresholds
	storeWindow int
	logger      *zap.Logger
}

// NewDuplicateDetector creates a detector reading at most storeWindow recent records per run.
func NewDuplicateDetector(reviews domain.ReviewRepository, store, batch Thresholds, storeWindow int, logger *zap.Logger) *DuplicateDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if storeWindow <= 0 {
		storeWindow = 1000
	}
	return &DuplicateDetector{
		reviews:     reviews,
		store:       store,
		batch:       batch,
		storeWindow: storeWindow,
		logger:      logger,
	}
}

// NewDuplicateDetectorFromConfig wires thresholds from the application config.
func NewDuplicateDetectorFromConfig(cfg *config.Config, reviews domain.ReviewRepository, logger *zap.Logger) *DuplicateDetector {
	return NewDuplicateDetector(reviews,
		Thresholds{
			Title:       cfg.TitleSimilarityThreshold,
			Description: cfg.DescriptionSimilarityThreshold,
			Movie:       cfg.MovieSimilarityThreshold,
		},
		Thresholds{
			Title:       cfg.BatchTitleThreshold,
			Description: cfg.BatchDescriptionThreshold,
			Movie:       cfg.BatchMovieThreshold,
		},
		cfg.DuplicateStoreWindow,
		logger,
	)
}

// FilterDuplicates keeps candidates, in input order, that duplicate neither a recent stored record
// nor a candidate already kept in this call. The first occurrence of a near-duplicate pair wins.
func (d *DuplicateDetector) FilterDuplicates(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, []Rejection, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	stored, err := d.reviews.ListRecent(ctx, d.storeWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("load recent reviews: %w", err)
	}
	storePool := make([]Entry, 0, len(stored))
	for _, r := range stored {
		storePool = append(storePool, ReviewEntry(r))
	}

	d.logger.Debug("filtering duplicates",
		zap.Int("candidates", len(candidates)),
		zap.Int("stored", len(storePool)))

	kept := make([]domain.Candidate, 0, len(candidates))
	keptPool := make([]Entry, 0, len(candidates))
	var rejected []Rejection

	for _, c := range candidates {
		entry := CandidateEntry(c)

		if dup, match := IsDuplicate(entry, storePool, d.store); dup {
			rejected = append(rejected, Rejection{Candidate: c, Stage: StageStore, Match: match})
			d.logger.Info("duplicate of stored review",
				zap.String("video_id", entry.Key),
				zap.String("rule", string(match.Rule)),
				zap.String("reason", match.Reason()))
			continue
		}
		if dup, match := IsDuplicate(entry, keptPool, d.batch); dup {
			rejected = append(rejected, Rejection{Candidate: c, Stage: StageBatch, Match: match})
			d.logger.Info("duplicate within batch",
				zap.String("video_id", entry.Key),
				zap.String("rule", string(match.Rule)),
				zap.String("reason", match.Reason()))
			continue
		}

		kept = append(kept, c)
		keptPool = append(keptPool, entry)
	}

	return kept, rejected, nil
}
