package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_update_reviews/config"
	httpclient "auto_update_reviews/internal/infrastructure/http"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newTestServiceFor(srv)
}

func newTestServiceFor(srv *httptest.Server) *Service {
	cfg := config.Default()
	cfg.YouTubeBaseURL = srv.URL
	cfg.YouTubeRequestsPerSec = 0
	return NewService(cfg, httpclient.NewHTTPClientFrom(srv.Client()), nil)
}

func TestSearchMergesVideoDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.URL.Query().Get("key"))
		assert.Equal(t, "video", r.URL.Query().Get("type"))
		assert.Equal(t, "Phê Phim", r.URL.Query().Get("q"))
		assert.Equal(t, "VN", r.URL.Query().Get("regionCode"))
		fmt.Fprint(w, `{"items":[
			{"id":{"videoId":"vid00000001"},"snippet":{"title":"Review Dune &amp; Part Two","description":"short","channelTitle":"Phê Phim","channelId":"UC1","publishedAt":"2026-01-02T03:04:05Z","thumbnails":{"high":{"url":"https://i.ytimg.com/hi.jpg"}}}},
			{"id":{"videoId":"vid00000002"},"snippet":{"title":"Second","channelTitle":"Phê Phim"}}
		]}`)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid00000001,vid00000002", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"items":[
			{"id":"vid00000001","snippet":{"description":"a much longer description","tags":["dune"]},"contentDetails":{"duration":"PT15M30S"},"statistics":{"viewCount":"12345","likeCount":"67"}},
			{"id":"vid00000002","contentDetails":{"duration":"PT1H"},"statistics":{"viewCount":"10"}}
		]}`)
	})
	svc := newTestService(t, mux)

	got, err := svc.Search(context.Background(), SearchRequest{APIKey: "k1", Query: "Phê Phim", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "vid00000001", first.VideoID)
	assert.Equal(t, "Review Dune & Part Two", first.Title)
	assert.Equal(t, "a much longer description", first.Description)
	assert.Equal(t, "Phê Phim", first.Channel)
	assert.Equal(t, 930, first.Duration)
	assert.Equal(t, int64(12345), first.ViewCount)
	assert.Equal(t, int64(67), first.LikeCount)
	assert.Equal(t, []string{"dune"}, first.Tags)
	assert.Equal(t, "https://i.ytimg.com/hi.jpg", first.ThumbnailURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid00000001", first.SourceURL)
	assert.Equal(t, "Phê Phim", first.Query)

	assert.Equal(t, 3600, got[1].Duration)
	assert.Equal(t, "https://img.youtube.com/vi/vid00000002/hqdefault.jpg", got[1].ThumbnailURL)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	}))
	got, err := svc.Search(context.Background(), SearchRequest{APIKey: "k", Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"quota", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`, ErrQuotaExceeded},
		{"rate limited", http.StatusTooManyRequests, ``, ErrQuotaExceeded},
		{"forbidden", http.StatusForbidden, `{"error":{"errors":[{"reason":"forbidden"}]}}`, ErrUnauthorized},
		{"bad key", http.StatusBadRequest, `{"error":{"errors":[{"reason":"keyInvalid"}]}}`, ErrUnauthorized},
		{"server", http.StatusBadGateway, `oops`, ErrTransient},
		{"garbage", http.StatusOK, `not json`, ErrMalformedResponse},
		{"missing id", http.StatusOK, `{"items":[{"id":{},"snippet":{"title":"x"}}]}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			_, err := svc.Search(context.Background(), SearchRequest{APIKey: "k", Query: "q"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.want, Kind(err))
		})
	}
}

func TestSearchNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.Default()
	cfg.YouTubeBaseURL = srv.URL
	client := httpclient.NewHTTPClientFrom(srv.Client())
	srv.Close()

	svc := NewService(cfg, client, nil)
	_, err := svc.Search(context.Background(), SearchRequest{APIKey: "k", Query: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.True(t, IsRetryable(err))
}

func TestVideoNotFound(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	}))
	got, err := svc.Video(context.Background(), "k", "abcdefghijk")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"PT10M", 600, false},
		{"PT1H2M3S", 3723, false},
		{"PT45S", 45, false},
		{"P1DT1S", 86401, false},
		{"P0D", 0, false},
		{"PT", 0, true},
		{"10:00", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseISODuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
