package source

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/infrastructure/youtube"
	"auto_update_reviews/internal/metrics"
)

// Searcher runs one keyword search with one credential.
type Searcher interface {
	Search(ctx context.Context, req youtube.SearchRequest) ([]domain.Candidate, error)
}

// Resolver turns a single video URL into a candidate.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, apiKey string) (*domain.Candidate, error)
}

// SmartSource searches the platform API with credential rotation and falls back to the
// synthetic generator once the API is unusable. The fallback sticks until the next BeginRun.
type SmartSource struct {
	searcher  Searcher
	resolver  Resolver
	generator *SyntheticGenerator
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu       sync.Mutex
	keys     []string
	keyIndex int
	fallback bool
}

var (
	_ domain.CandidateSource = (*SmartSource)(nil)
	_ domain.RunAware        = (*SmartSource)(nil)
)

// NewSmartSource creates a source. resolver may be nil, in which case URL queries are searched as text.
func NewSmartSource(searcher Searcher, resolver Resolver, generator *SyntheticGenerator, keys []string, m *metrics.Metrics, logger *zap.Logger) *SmartSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = NewSyntheticGenerator()
	}
	return &SmartSource{
		searcher:  searcher,
		resolver:  resolver,
		generator: generator,
		metrics:   m,
		logger:    logger,
		keys:      append([]string(nil), keys...),
	}
}

// BeginRun clears the fallback flag so each run tries the API again.
func (s *SmartSource) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = false
}

// FallbackUsed reports whether the current run switched to synthetic data.
func (s *SmartSource) FallbackUsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

// Fetch implements domain.CandidateSource. It never returns an error.
func (s *SmartSource) Fetch(ctx context.Context, query string, maxResults int) ([]domain.Candidate, error) {
	if s.resolver != nil && domain.IsVideoURL(query) {
		return s.resolve(ctx, query), nil
	}

	key, ok := s.activeKey()
	if !ok {
		return s.fallbackTo(query, maxResults, "no usable credentials", nil), nil
	}

	results, err := s.search(ctx, key, query, maxResults)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, nil
	}

	switch {
	case errors.Is(err, youtube.ErrQuotaExceeded):
		s.metrics.SourceError("quota")
		s.logger.Warn("quota exhausted, rotating credential", zap.String("query", query), zap.Error(err))
		key = s.rotate()
	case errors.Is(err, youtube.ErrTransient):
		s.metrics.SourceError("transient")
		s.logger.Warn("transient search failure, retrying", zap.String("query", query), zap.Error(err))
	default:
		s.metrics.SourceError(errorKind(err))
		return s.fallbackTo(query, maxResults, "youtube api unusable", err), nil
	}

	results, err = s.search(ctx, key, query, maxResults)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, nil
	}
	s.metrics.SourceError(errorKind(err))
	return s.fallbackTo(query, maxResults, "youtube api unusable", err), nil
}

func (s *SmartSource) search(ctx context.Context, key, query string, maxResults int) ([]domain.Candidate, error) {
	return s.searcher.Search(ctx, youtube.SearchRequest{APIKey: key, Query: query, MaxResults: maxResults})
}

func (s *SmartSource) resolve(ctx context.Context, rawURL string) []domain.Candidate {
	key, _ := s.currentKey()
	c, err := s.resolver.Resolve(ctx, rawURL, key)
	if err != nil {
		s.logger.Warn("could not resolve video url", zap.String("url", rawURL), zap.Error(err))
		return nil
	}
	c.Query = rawURL
	return []domain.Candidate{*c}
}

// activeKey returns the credential to use, or false when the run is in fallback mode.
func (s *SmartSource) activeKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback || len(s.keys) == 0 {
		return "", false
	}
	return s.keys[s.keyIndex%len(s.keys)], true
}

func (s *SmartSource) currentKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) == 0 {
		return "", false
	}
	return s.keys[s.keyIndex%len(s.keys)], true
}

func (s *SmartSource) rotate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyIndex = (s.keyIndex + 1) % len(s.keys)
	s.logger.Info("rotated api credential", zap.Int("index", s.keyIndex+1), zap.Int("total", len(s.keys)))
	return s.keys[s.keyIndex]
}

// fallbackTo switches the run to synthetic data and generates candidates for query.
func (s *SmartSource) fallbackTo(query string, maxResults int, reason string, cause error) []domain.Candidate {
	s.mu.Lock()
	already := s.fallback
	s.fallback = true
	s.mu.Unlock()

	if !already {
		s.metrics.Fallback()
		s.logger.Warn("switching to synthetic candidates for this run",
			zap.String("query", query), zap.String("reason", reason), zap.Error(cause))
	}
	return s.generator.Generate(query, maxResults)
}

func errorKind(err error) string {
	switch youtube.Kind(err) {
	case youtube.ErrQuotaExceeded:
		return "quota"
	case youtube.ErrUnauthorized:
		return "unauthorized"
	case youtube.ErrTransient:
		return "transient"
	case youtube.ErrMalformedResponse:
		return "malformed"
	default:
		return "unknown"
	}
}
