package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/infrastructure/youtube"
)

type fakeSearcher struct {
	calls []youtube.SearchRequest
	errs  []error
	items []domain.Candidate
}

func (f *fakeSearcher) Search(_ context.Context, req youtube.SearchRequest) ([]domain.Candidate, error) {
	f.calls = append(f.calls, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

type fakeResolver struct {
	key string
}

func (f *fakeResolver) Resolve(_ context.Context, rawURL, apiKey string) (*domain.Candidate, error) {
	f.key = apiKey
	id := domain.ExtractVideoID(rawURL)
	if id == "" {
		return nil, errors.New("bad url")
	}
	return &domain.Candidate{VideoID: id, Title: "Review Dune"}, nil
}

func quotaErr() error { return fmt.Errorf("search: %w", youtube.ErrQuotaExceeded) }

func TestFetchReturnsAPIResults(t *testing.T) {
	searcher := &fakeSearcher{items: []domain.Candidate{{VideoID: "a"}}}
	src := NewSmartSource(searcher, nil, nil, []string{"k1"}, nil, nil)

	got, err := src.Fetch(context.Background(), "Vus Review", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.False(t, src.FallbackUsed())
	assert.Equal(t, "k1", searcher.calls[0].APIKey)
	assert.Equal(t, 5, searcher.calls[0].MaxResults)
}

func TestEmptyResultIsNotAFailure(t *testing.T) {
	src := NewSmartSource(&fakeSearcher{}, nil, nil, []string{"k1"}, nil, nil)
	got, err := src.Fetch(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, src.FallbackUsed())
}

func TestQuotaRotatesCredentialAndRetriesOnce(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{quotaErr(), nil}, items: []domain.Candidate{{VideoID: "a"}}}
	src := NewSmartSource(searcher, nil, nil, []string{"k1", "k2"}, nil, nil)

	got, err := src.Fetch(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.Len(t, searcher.calls, 2)
	assert.Equal(t, "k1", searcher.calls[0].APIKey)
	assert.Equal(t, "k2", searcher.calls[1].APIKey)
	assert.False(t, src.FallbackUsed())
}

func TestPersistentQuotaFailureFallsBackForRestOfRun(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{quotaErr(), quotaErr(), nil}, items: []domain.Candidate{{VideoID: "real"}}}
	src := NewSmartSource(searcher, nil, nil, []string{"k1"}, nil, nil)
	src.BeginRun()

	first, err := src.Fetch(context.Background(), "Vus Review", 4)
	require.NoError(t, err)
	assert.Len(t, first, 4)
	assert.True(t, first[0].Synthetic)
	assert.True(t, src.FallbackUsed())

	second, err := src.Fetch(context.Background(), "FC Review", 4)
	require.NoError(t, err)
	assert.Len(t, second, 4)
	assert.True(t, second[0].Synthetic)
	assert.Len(t, searcher.calls, 2, "fallback is sticky within a run")

	src.BeginRun()
	assert.False(t, src.FallbackUsed())
	third, err := src.Fetch(context.Background(), "FC Review", 4)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "real", third[0].VideoID)
}

func TestUnauthorizedFallsBackWithoutRetry(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{youtube.ErrUnauthorized}}
	src := NewSmartSource(searcher, nil, nil, []string{"k1", "k2"}, nil, nil)

	got, err := src.Fetch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, searcher.calls, 1)
	assert.True(t, src.FallbackUsed())
}

func TestTransientRetriesSameCredential(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{youtube.ErrTransient, nil}}
	src := NewSmartSource(searcher, nil, nil, []string{"k1", "k2"}, nil, nil)

	_, err := src.Fetch(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, searcher.calls, 2)
	assert.Equal(t, "k1", searcher.calls[1].APIKey)
	assert.False(t, src.FallbackUsed())
}

func TestNoCredentialsUsesGenerator(t *testing.T) {
	searcher := &fakeSearcher{}
	src := NewSmartSource(searcher, nil, nil, nil, nil, nil)

	got, err := src.Fetch(context.Background(), "Chơi Phim Review", 8)
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Empty(t, searcher.calls)
	assert.True(t, src.FallbackUsed())
}

func TestURLQueryIsResolved(t *testing.T) {
	resolver := &fakeResolver{}
	src := NewSmartSource(&fakeSearcher{}, resolver, nil, []string{"k1"}, nil, nil)

	got, err := src.Fetch(context.Background(), "https://youtu.be/abcdefghijk", 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abcdefghijk", got[0].VideoID)
	assert.Equal(t, "https://youtu.be/abcdefghijk", got[0].Query)
	assert.Equal(t, "k1", resolver.key)
}

func TestSyntheticGenerator(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	gen := &SyntheticGenerator{now: func() time.Time { return now }}

	got := gen.Generate("Chơi Phim Review", 10)
	require.Len(t, got, 10)

	seen := map[string]bool{}
	for i, c := range got {
		assert.True(t, strings.HasPrefix(c.VideoID, fmt.Sprintf("VN%d", now.Unix())))
		assert.False(t, seen[c.VideoID])
		seen[c.VideoID] = true

		assert.Equal(t, "Chơi Phim Review", c.Channel)
		assert.Equal(t, "UC_ChoiPhimReview", c.ChannelID)
		assert.Equal(t, 600+i*180, c.Duration)
		assert.Equal(t, int64(15000+i*5000), c.ViewCount)
		assert.Equal(t, int64(800+i*200), c.LikeCount)
		assert.Equal(t, now.AddDate(0, 0, -(i+1)), c.PublishedAt)
		assert.Contains(t, c.Description, "Entertainment-focused movie analysis with humor")
		assert.True(t, c.Synthetic)
		assert.NotContains(t, c.Title, "%!")
	}
	assert.Contains(t, got[7].Title, "Tập 8")

	again := gen.Generate("Chơi Phim Review", 10)
	for i := range got {
		assert.Equal(t, got[i].Title, again[i].Title, "titles are deterministic")
		assert.NotEqual(t, got[i].VideoID, again[i].VideoID, "identity keys never repeat")
	}
}

func TestSyntheticTitlesDependOnQuery(t *testing.T) {
	gen := NewSyntheticGenerator()
	offsets := map[int]bool{}
	for _, q := range []string{"Chơi Phim Review", "NiNi Mê Phim", "Mèo Mê Phim", "FC Review", "Vus Review"} {
		offsets[queryOffset(q)] = true
	}
	assert.Greater(t, len(offsets), 1)

	unknown := gen.Generate("some other channel", 3)
	require.Len(t, unknown, 3)
	assert.Equal(t, "UC_VietnameseReviewer", unknown[0].ChannelID)

	all := gen.Generate("q", 0)
	assert.Len(t, all, len(PopularMovies))
}
