package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/domain"
	httpclient "auto_update_reviews/internal/infrastructure/http"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Service handles YouTube Data API interactions
type Service struct {
	client   *httpclient.HTTPClient
	baseURL  string
	region   string
	language string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewService creates a new YouTube service
func NewService(cfg *config.Config, httpClient *httpclient.HTTPClient, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.YouTubeBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	if cfg.YouTubeRequestsPerSec > 0 {
		limit = rate.Limit(cfg.YouTubeRequestsPerSec)
	}
	return &Service{
		client:   httpClient,
		baseURL:  baseURL,
		region:   cfg.YouTubeRegion,
		language: cfg.YouTubeLanguage,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// SearchRequest is one keyword search made with one API credential
type SearchRequest struct {
	APIKey     string
	Query      string
	MaxResults int
}

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnails struct {
	Default thumbnail `json:"default"`
	Medium  thumbnail `json:"medium"`
	High    thumbnail `json:"high"`
}

func (t thumbnails) best() string {
	for _, candidate := range []string{t.High.URL, t.Medium.URL, t.Default.URL} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

type snippet struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ChannelID    string     `json:"channelId"`
	ChannelTitle string     `json:"channelTitle"`
	PublishedAt  time.Time  `json:"publishedAt"`
	Thumbnails   thumbnails `json:"thumbnails"`
	Tags         []string   `json:"tags"`
}

// searchResponse represents the /search response
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

// videosResponse represents the /videos response
type videosResponse struct {
	Items []struct {
		ID             string  `json:"id"`
		Snippet        snippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Search runs a keyword search and enriches the hits with duration and statistics.
// An empty result is not an error.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]domain.Candidate, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 8
	}
	if maxResults > 50 {
		maxResults = 50
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("q", req.Query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if s.region != "" {
		params.Set("regionCode", s.region)
	}
	if s.language != "" {
		params.Set("relevanceLanguage", s.language)
	}

	var result searchResponse
	if err := s.get(ctx, "search", req.APIKey, params, &result); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(result.Items))
	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			return nil, fmt.Errorf("%w: search item without video id", ErrMalformedResponse)
		}
		c := candidateFromSnippet(item.ID.VideoID, item.Snippet)
		c.Query = req.Query
		candidates = append(candidates, c)
		ids = append(ids, item.ID.VideoID)
	}
	if len(ids) == 0 {
		return candidates, nil
	}

	details, err := s.videos(ctx, req.APIKey, ids)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if d, ok := details[candidates[i].VideoID]; ok {
			mergeDetails(&candidates[i], d)
		}
	}
	return candidates, nil
}

// Video looks up a single video by id. It returns nil when the id does not exist.
func (s *Service) Video(ctx context.Context, apiKey, videoID string) (*domain.Candidate, error) {
	details, err := s.videos(ctx, apiKey, []string{videoID})
	if err != nil {
		return nil, err
	}
	d, ok := details[videoID]
	if !ok {
		return nil, nil
	}
	c := candidateFromSnippet(videoID, d.Snippet)
	mergeDetails(&c, d)
	return &c, nil
}

func (s *Service) videos(ctx context.Context, apiKey string, ids []string) (map[string]videoDetails, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(ids, ","))

	var result videosResponse
	if err := s.get(ctx, "videos", apiKey, params, &result); err != nil {
		return nil, err
	}

	details := make(map[string]videoDetails, len(result.Items))
	for _, item := range result.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: video item without id", ErrMalformedResponse)
		}
		d := videoDetails{
			Snippet:   item.Snippet,
			ViewCount: parseCount(item.Statistics.ViewCount),
			LikeCount: parseCount(item.Statistics.LikeCount),
		}
		if item.ContentDetails.Duration != "" {
			seconds, err := ParseISODuration(item.ContentDetails.Duration)
			if err != nil {
				s.logger.Warn("unparseable video duration",
					zap.String("video_id", item.ID),
					zap.String("duration", item.ContentDetails.Duration))
			}
			d.Duration = seconds
		}
		details[item.ID] = d
	}
	return details, nil
}

type videoDetails struct {
	Snippet   snippet
	Duration  int
	ViewCount int64
	LikeCount int64
}

func (s *Service) get(ctx context.Context, endpoint, apiKey string, params url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("key", apiKey)
	apiURL := fmt.Sprintf("%s/%s?%s", s.baseURL, endpoint, params.Encode())

	resp, err := s.client.Get(ctx, apiURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", ErrTransient, endpoint, err)
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransient, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", endpoint, classifyResponse(resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

func candidateFromSnippet(videoID string, sn snippet) domain.Candidate {
	thumb := sn.Thumbnails.best()
	if thumb == "" {
		thumb = domain.ThumbnailURL(videoID)
	}
	return domain.Candidate{
		VideoID:      videoID,
		Title:        html.UnescapeString(sn.Title),
		Description:  html.UnescapeString(sn.Description),
		Channel:      html.UnescapeString(sn.ChannelTitle),
		ChannelID:    sn.ChannelID,
		PublishedAt:  sn.PublishedAt,
		SourceURL:    domain.WatchURL(videoID),
		ThumbnailURL: thumb,
		Tags:         sn.Tags,
	}
}

func mergeDetails(c *domain.Candidate, d videoDetails) {
	c.Duration = d.Duration
	c.ViewCount = d.ViewCount
	c.LikeCount = d.LikeCount
	// search snippets truncate the description
	if desc := html.UnescapeString(d.Snippet.Description); len(desc) > len(c.Description) {
		c.Description = desc
	}
	if len(d.Snippet.Tags) > 0 {
		c.Tags = d.Snippet.Tags
	}
}

func parseCount(value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IsRetryable reports whether err is worth retrying with the same or another credential.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrTransient)
}
