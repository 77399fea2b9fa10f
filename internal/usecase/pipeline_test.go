package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/delivery/cron"
	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/infrastructure/source"
	"auto_update_reviews/internal/infrastructure/youtube"
	"auto_update_reviews/internal/metrics"
	"auto_update_reviews/internal/repository/memory"
)

// staticSource returns fixed candidates per query; queries listed in fail return an error.
type staticSource struct {
	byQuery map[string][]domain.Candidate
	fail    map[string]bool
}

func (s *staticSource) Fetch(_ context.Context, query string, _ int) ([]domain.Candidate, error) {
	if s.fail[query] {
		return nil, fmt.Errorf("search %q failed", query)
	}
	return s.byQuery[query], nil
}

// flakyRepo fails inserts for one identity key.
type flakyRepo struct {
	*memory.ReviewRepository
	failKey string
}

func (f flakyRepo) Insert(ctx context.Context, r *domain.Review) (string, error) {
	if r.IdentityKey() == f.failKey {
		return "", errors.New("disk I/O error")
	}
	return f.ReviewRepository.Insert(ctx, r)
}

type quotaSearcher struct {
	calls int
}

func (q *quotaSearcher) Search(context.Context, youtube.SearchRequest) ([]domain.Candidate, error) {
	q.calls++
	return nil, fmt.Errorf("search: %w", youtube.ErrQuotaExceeded)
}

func newTestPipeline(t *testing.T, src domain.CandidateSource, repo domain.ReviewRepository, queries ...string) *Pipeline {
	t.Helper()
	cfg := config.Default()
	logger := zaptest.NewLogger(t)
	opts := PipelineOptionsFromConfig(cfg)
	opts.Queries = queries

	return NewPipeline(
		src,
		NewQualityValidator(QualityRulesFromConfig(cfg)),
		NewDuplicateDetectorFromConfig(cfg, repo, logger),
		NewKeywordClassifier(logger),
		repo,
		metrics.New(),
		opts,
		logger,
	)
}

func TestPipelineIngestsReview(t *testing.T) {
	repo := memory.NewReviewRepository()
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {deadpoolCandidate()}}}
	p := newTestPipeline(t, src, repo, "q")

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Added)

	stored, err := repo.FindByIdentity(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.CountryUS, stored.Country)
	assert.Equal(t, domain.GenreAction, stored.Genre)
	assert.Equal(t, domain.MovieTypeMovie, stored.MovieType)
	assert.Equal(t, "Deadpool Wolverine", stored.MovieTitle)
	assert.Equal(t, "X", stored.Reviewer)
	assert.Equal(t, domain.WatchURL("abc123"), stored.SourceURL)
	assert.Equal(t, domain.ThumbnailURL("abc123"), stored.ThumbnailURL)
	assert.Equal(t, domain.VideoTypeYouTube, stored.VideoType)
	assert.Equal(t, 7, stored.Rating)
	assert.True(t, stored.Published)
}

func TestPipelineSameCandidateTwiceInBatch(t *testing.T) {
	repo := memory.NewReviewRepository()
	c := deadpoolCandidate()
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {c, c}}}

	result, err := newTestPipeline(t, src, repo, "q").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Rejected)

	count, _ := repo.Count(context.Background())
	assert.Equal(t, 1, count)
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	repo := memory.NewReviewRepository()
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {deadpoolCandidate()}}}
	p := newTestPipeline(t, src, repo, "q")

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Found)
	assert.Equal(t, 0, second.Added)

	count, _ := repo.Count(context.Background())
	assert.Equal(t, 1, count)
}

func TestPipelineSkipsFailedQueryAndFailedInsert(t *testing.T) {
	repo := flakyRepo{ReviewRepository: memory.NewReviewRepository(), failKey: "bad"}
	bad := deadpoolCandidate()
	bad.VideoID = "bad"
	bad.Title = "Review phim Inside Out 2 - Hoạt hình Pixar cảm động"
	good := domain.Candidate{
		VideoID:   "good",
		Title:     "Đánh giá phim Dune: Part Two - Siêu phẩm khoa học viễn tưởng",
		ViewCount: 50000,
		Duration:  900,
		Channel:   "Vus Review",
	}
	src := &staticSource{
		byQuery: map[string][]domain.Candidate{"ok": {bad, good}},
		fail:    map[string]bool{"down": true},
	}

	result, err := newTestPipeline(t, src, repo, "down", "ok").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 2, result.Unique)
	assert.Equal(t, 1, result.Added)

	stored, err := repo.FindByIdentity(context.Background(), "good")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.GenreSciFi, stored.Genre)
}

func TestPipelineRejectsLowQuality(t *testing.T) {
	repo := memory.NewReviewRepository()
	short := deadpoolCandidate()
	short.Duration = 300
	noID := deadpoolCandidate()
	noID.VideoID = ""
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {short, noID}}}

	result, err := newTestPipeline(t, src, repo, "q").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 0, result.Added)
}

func TestPipelineRespectsMaxNewPerRun(t *testing.T) {
	repo := memory.NewReviewRepository()
	a := deadpoolCandidate()
	b := domain.Candidate{
		VideoID:   "dune",
		Title:     "Đánh giá phim Dune: Part Two - Siêu phẩm khoa học viễn tưởng",
		ViewCount: 50000,
		Duration:  900,
		Channel:   "Vus Review",
	}
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {a, b}}}
	p := newTestPipeline(t, src, repo, "q")
	p.opts.MaxNewPerRun = 1

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Unique)
	assert.Equal(t, 1, result.Added)
}

func TestPipelineStopsOnCancel(t *testing.T) {
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {deadpoolCandidate()}}}
	p := newTestPipeline(t, src, memory.NewReviewRepository(), "q")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineDetectorStoreFailureAbortsRun(t *testing.T) {
	src := &staticSource{byQuery: map[string][]domain.Candidate{"q": {deadpoolCandidate()}}}
	p := newTestPipeline(t, src, brokenRepo{memory.NewReviewRepository()}, "q")

	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestQuotaFailureFallsBackAndRunSucceeds(t *testing.T) {
	repo := memory.NewReviewRepository()
	searcher := &quotaSearcher{}
	src := source.NewSmartSource(searcher, nil, nil, []string{"only-key"}, nil, zaptest.NewLogger(t))
	p := newTestPipeline(t, src, repo, "Vus Review", "FC Review")

	logs := memory.NewRunLogRepository()
	sched := cron.NewScheduler(p, logs, repo, memory.NewSettingsStore(), nil, cron.Options{Enabled: true}, zaptest.NewLogger(t))

	result, err := sched.TriggerManualRun(context.Background())
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 2, searcher.calls, "quota failure retried once, then fallback sticks for the run")
	assert.Equal(t, 16, result.Found)
	assert.Positive(t, result.Added)

	entries, err := logs.ListLogs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.RunStatusSuccess, entries[0].Status)
	assert.Equal(t, result.Added, entries[0].Added)
}
