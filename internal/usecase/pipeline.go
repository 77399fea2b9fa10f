package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/metrics"
)

const missingIdentityReason = "missing identity key"

// fallbackReporter is implemented by sources that can tell whether the current run used synthetic data.
type fallbackReporter interface {
	FallbackUsed() bool
}

// PipelineOptions controls what a run fetches and how new records are stamped.
type PipelineOptions struct {
	Queries       []string
	MaxResults    int
	MaxNewPerRun  int // 0 = unlimited
	AutoPublish   bool
	DefaultRating int
}

// PipelineOptionsFromConfig extracts pipeline options from the application config.
func PipelineOptionsFromConfig(cfg *config.Config) PipelineOptions {
	return PipelineOptions{
		Queries:       cfg.SearchQueries,
		MaxResults:    cfg.MaxResultsPerQuery,
		MaxNewPerRun:  cfg.MaxNewPerRun,
		AutoPublish:   cfg.AutoPublish,
		DefaultRating: cfg.DefaultRating,
	}
}

// Pipeline runs Source -> Validator -> Detector -> Classifier -> Persist.
type Pipeline struct {
	source     domain.CandidateSource
	validator  *QualityValidator
	detector   *DuplicateDetector
	classifier domain.Classifier
	reviews    domain.ReviewRepository
	metrics    *metrics.Metrics
	opts       PipelineOptions
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(
	source domain.CandidateSource,
	validator *QualityValidator,
	detector *DuplicateDetector,
	classifier domain.Classifier,
	reviews domain.ReviewRepository,
	m *metrics.Metrics,
	opts PipelineOptions,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 8
	}
	if opts.DefaultRating <= 0 {
		opts.DefaultRating = 7
	}
	return &Pipeline{
		source:     source,
		validator:  validator,
		detector:   detector,
		classifier: classifier,
		reviews:    reviews,
		metrics:    m,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one ingestion pass over every configured query, in order.
// Source and per-record persistence failures are logged and skipped; only a failure to read the
// store for duplicate detection, or cancellation, aborts the run.
func (p *Pipeline) Run(ctx context.Context) (domain.RunResult, error) {
	var result domain.RunResult

	if aware, ok := p.source.(domain.RunAware); ok {
		aware.BeginRun()
	}

	var candidates []domain.Candidate
	for _, query := range p.opts.Queries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fetched, err := p.source.Fetch(ctx, query, p.opts.MaxResults)
		if err != nil {
			p.logger.Error("candidate fetch failed, skipping query", zap.String("query", query), zap.Error(err))
			continue
		}
		p.logger.Info("fetched candidates", zap.String("query", query), zap.Int("count", len(fetched)))
		p.metrics.Found(query, len(fetched))

		result.Found += len(fetched)
		for _, c := range fetched {
			if c.Query == "" {
				c.Query = query
			}
			candidates = append(candidates, c)
		}
	}

	if reporter, ok := p.source.(fallbackReporter); ok {
		result.FallbackUsed = reporter.FallbackUsed()
	}

	accepted := p.validate(candidates)
	result.Accepted = len(accepted)

	unique, duplicates, err := p.detector.FilterDuplicates(ctx, accepted)
	if err != nil {
		return result, fmt.Errorf("duplicate detection: %w", err)
	}
	for _, d := range duplicates {
		p.metrics.Rejected(string(d.Stage), string(d.Match.Rule))
	}
	result.Unique = len(unique)
	result.Rejected = len(candidates) - len(unique)

	for _, c := range unique {
		if p.opts.MaxNewPerRun > 0 && result.Added >= p.opts.MaxNewPerRun {
			p.logger.Info("reached max new reviews for this run", zap.Int("limit", p.opts.MaxNewPerRun))
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.persist(ctx, c) {
			result.Added++
		}
	}

	p.logger.Info("ingestion run finished",
		zap.Int("found", result.Found),
		zap.Int("accepted", result.Accepted),
		zap.Int("unique", result.Unique),
		zap.Int("added", result.Added),
		zap.Bool("fallback", result.FallbackUsed))

	return result, nil
}

func (p *Pipeline) validate(candidates []domain.Candidate) []domain.Candidate {
	accepted := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.IdentityKey() == "" {
			p.logger.Warn("rejected candidate", zap.String("title", c.Title), zap.String("reason", missingIdentityReason))
			p.metrics.Rejected("identity", "missing")
			continue
		}

		verdict := p.validator.Validate(c)
		if !verdict.Accepted {
			p.logger.Info("rejected candidate",
				zap.String("video_id", c.IdentityKey()),
				zap.String("title", c.Title),
				zap.Strings("reasons", verdict.Reasons))
			p.metrics.Rejected("quality", qualityRule(verdict.Reasons[0]))
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// qualityRule turns the first rejection reason into a low-cardinality metric label.
func qualityRule(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Not a movie review"):
		return "not_review"
	case strings.HasPrefix(reason, "Title too short"):
		return "title_length"
	case strings.HasPrefix(reason, "Cannot extract"):
		return "movie_name"
	case strings.HasPrefix(reason, "Low view count"):
		return "views"
	case strings.HasPrefix(reason, "Too short"), strings.HasPrefix(reason, "Too long"):
		return "duration"
	case strings.HasPrefix(reason, "Missing channel"):
		return "channel"
	default:
		return "other"
	}
}

// persist classifies and stores one candidate. It reports whether a new record was written.
func (p *Pipeline) persist(ctx context.Context, c domain.Candidate) bool {
	key := c.IdentityKey()

	existing, err := p.reviews.FindByIdentity(ctx, key)
	if err != nil {
		p.logger.Error("identity lookup failed, skipping", zap.String("video_id", key), zap.Error(err))
		p.metrics.PersistFailed()
		return false
	}
	if existing != nil {
		p.logger.Info("review already stored", zap.String("video_id", key))
		return false
	}

	review := p.buildReview(ctx, c)
	if _, err := p.reviews.Insert(ctx, review); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			p.logger.Info("review already stored", zap.String("video_id", key))
			return false
		}
		p.logger.Error("failed to persist review, skipping", zap.String("video_id", key), zap.Error(err))
		p.metrics.PersistFailed()
		return false
	}

	p.metrics.Added()
	p.metrics.Genre(review.Genre)
	p.logger.Info("added review",
		zap.String("video_id", key),
		zap.String("title", review.Title),
		zap.String("country", review.Country),
		zap.String("genre", review.Genre),
		zap.String("movie_type", string(review.MovieType)))
	return true
}

func (p *Pipeline) buildReview(ctx context.Context, c domain.Candidate) *domain.Review {
	classification := p.classifier.Classify(ctx, c.Title, c.Description, c.Tags).Normalize(c.Title)

	movieTitle := ExtractMovieName(c.Title)
	if movieTitle == "" {
		movieTitle = domain.UnknownMovieName
	}

	videoID := strings.TrimSpace(c.VideoID)
	if videoID == "" {
		videoID = c.IdentityKey()
	}
	sourceURL := strings.TrimSpace(c.SourceURL)
	if sourceURL == "" {
		sourceURL = domain.WatchURL(videoID)
	}
	thumbnail := c.ThumbnailURL
	if thumbnail == "" {
		thumbnail = domain.ThumbnailURL(videoID)
	}

	review := &domain.Review{
		VideoID:      videoID,
		Title:        c.Title,
		MovieTitle:   movieTitle,
		Reviewer:     c.Channel,
		SourceURL:    sourceURL,
		VideoType:    domain.VideoTypeYouTube,
		Description:  c.Description,
		ThumbnailURL: thumbnail,
		Duration:     c.Duration,
		ViewCount:    c.ViewCount,
		Rating:       p.opts.DefaultRating,
		Published:    p.opts.AutoPublish,
		PublishedAt:  c.PublishedAt,
		CreatedAt:    p.now(),
	}
	review.ApplyClassification(classification)
	return review
}
