package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_update_reviews/internal/domain"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open("sqlite3:" + filepath.Join(t.TempDir(), "reviews.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReview(id string) *domain.Review {
	return &domain.Review{
		VideoID:      id,
		Title:        "Review Deadpool & Wolverine - Phim hành động đỉnh cao",
		MovieTitle:   "Deadpool Wolverine",
		Reviewer:     "Phê Phim",
		SourceURL:    domain.WatchURL(id),
		VideoType:    domain.VideoTypeYouTube,
		Description:  "Review chi tiết phim Deadpool & Wolverine.",
		ThumbnailURL: domain.ThumbnailURL(id),
		Duration:     900,
		ViewCount:    15000,
		Rating:       7,
		Published:    true,
		Country:      domain.CountryUS,
		Genre:        domain.GenreAction,
		MovieType:    domain.MovieTypeMovie,
		PublishedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "file:db.sqlite?_pragma=busy_timeout(5000)"},
		{"sqlite3:./db.sqlite", "file:db.sqlite?_pragma=busy_timeout(5000)"},
		{"sqlite:/tmp/x.db", "file:/tmp/x.db?_pragma=busy_timeout(5000)"},
		{"reviews.db", "file:reviews.db?_pragma=busy_timeout(5000)"},
		{"file:x.db?mode=memory", "file:x.db?mode=memory"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDSN(tt.in), tt.in)
	}
}

func TestReviewRepositoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(openTestDB(t))

	review := sampleReview("abc123")
	id, err := repo.Insert(ctx, review)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, review.ID)
	assert.False(t, review.CreatedAt.IsZero())

	got, err := repo.FindByIdentity(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, review.Title, got.Title)
	assert.Equal(t, "Deadpool Wolverine", got.MovieTitle)
	assert.Equal(t, domain.CountryUS, got.Country)
	assert.Equal(t, domain.MovieTypeMovie, got.MovieType)
	assert.Equal(t, 0, got.EpisodeNumber)
	assert.Equal(t, int64(15000), got.ViewCount)
	assert.True(t, got.Published)
	assert.True(t, review.PublishedAt.Equal(got.PublishedAt))

	byURL, err := repo.FindByIdentity(ctx, domain.WatchURL("abc123"))
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, id, byURL.ID)

	missing, err := repo.FindByIdentity(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReviewRepositoryRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(openTestDB(t))

	_, err := repo.Insert(ctx, sampleReview("dup1"))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, sampleReview("dup1"))
	assert.True(t, errors.Is(err, domain.ErrDuplicateRecord))

	sameURL := sampleReview("other")
	sameURL.SourceURL = domain.WatchURL("dup1")
	_, err = repo.Insert(ctx, sameURL)
	assert.True(t, errors.Is(err, domain.ErrDuplicateRecord))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReviewRepositoryListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(openTestDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2", "a3"} {
		r := sampleReview(id)
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a3", recent[0].VideoID)
	assert.Equal(t, "a2", recent[1].VideoID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReviewRepositorySeriesColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewRepository(openTestDB(t))

	r := sampleReview("series1")
	r.MovieType = domain.MovieTypeSeries
	r.SeriesName = "Squid Game"
	r.EpisodeNumber = 3
	_, err := repo.Insert(ctx, r)
	require.NoError(t, err)

	got, err := repo.FindByIdentity(ctx, "series1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.MovieTypeSeries, got.MovieType)
	assert.Equal(t, "Squid Game", got.SeriesName)
	assert.Equal(t, 3, got.EpisodeNumber)
}

func TestRunLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRunLogRepository(openTestDB(t))

	last, err := repo.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	entries := []*domain.RunLog{
		{Timestamp: start, StartedAt: start, FinishedAt: start.Add(time.Minute), Status: domain.RunStatusSuccess, Message: "Found 5 videos, added 2", Found: 5, Added: 2, Trigger: domain.TriggerSchedule},
		{Timestamp: start.Add(time.Hour), Status: domain.RunStatusError, Message: "boom", Trigger: domain.TriggerManual},
	}
	for _, e := range entries {
		require.NoError(t, repo.AppendLog(ctx, e))
		assert.NotZero(t, e.ID)
	}

	logs, err := repo.ListLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.RunStatusError, logs[0].Status)
	assert.Equal(t, domain.TriggerManual, logs[0].Trigger)
	assert.Equal(t, domain.RunStatusSuccess, logs[1].Status)
	assert.Equal(t, 5, logs[1].Found)
	assert.Equal(t, 2, logs[1].Added)

	last, err = repo.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, entries[0].ID, last.ID)
	assert.True(t, start.Equal(last.StartedAt))
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	_, ok, err := repo.SchedulerEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetSchedulerEnabled(ctx, false))
	enabled, ok, err := repo.SchedulerEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, enabled)

	require.NoError(t, repo.SetSchedulerEnabled(ctx, true))
	enabled, _, err = repo.SchedulerEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

type codeErr int

func (c codeErr) Error() string { return "sqlite error" }
func (c codeErr) Code() int     { return int(c) }

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return codeErr(sqliteBusyCode)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("other")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	assert.True(t, isConstraintViolation(codeErr(2067)))
	assert.False(t, isConstraintViolation(codeErr(sqliteBusyCode)))
}
