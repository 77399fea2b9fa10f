package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"auto_update_reviews/internal/domain"
	httpclient "auto_update_reviews/internal/infrastructure/http"
)

const (
	defaultOEmbedURL = "https://www.youtube.com/oembed"
	defaultWatchBase = "https://www.youtube.com/watch"
)

// PageFetcher returns the HTML of a web page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// HTTPPageFetcher fetches pages with a plain GET.
type HTTPPageFetcher struct {
	client *httpclient.HTTPClient
}

// NewHTTPPageFetcher creates a fetcher on top of the shared HTTP client.
func NewHTTPPageFetcher(client *httpclient.HTTPClient) *HTTPPageFetcher {
	return &HTTPPageFetcher{client: client}
}

// FetchPage implements PageFetcher.
func (f *HTTPPageFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return string(body), nil
}

// PageResolver turns a single YouTube URL into a candidate.
// With an API key it asks /videos; otherwise it combines oEmbed, the watch page
// metadata and, when both are thin, an Invidious mirror.
type PageResolver struct {
	service   *Service
	client    *httpclient.HTTPClient
	pages     PageFetcher
	invidious *InvidiousClient
	oembedURL string
	watchBase string
	logger    *zap.Logger
}

// ResolverOption customizes a PageResolver.
type ResolverOption func(*PageResolver)

// WithEndpoints overrides the oEmbed and watch page endpoints.
func WithEndpoints(oembedURL, watchBase string) ResolverOption {
	return func(r *PageResolver) {
		r.oembedURL = oembedURL
		r.watchBase = watchBase
	}
}

// WithInvidious sets the mirror used when the page metadata is incomplete.
func WithInvidious(client *InvidiousClient) ResolverOption {
	return func(r *PageResolver) {
		r.invidious = client
	}
}

// NewPageResolver creates a resolver. service may be nil when no API key is configured.
func NewPageResolver(service *Service, client *httpclient.HTTPClient, pages PageFetcher, logger *zap.Logger, opts ...ResolverOption) *PageResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pages == nil {
		pages = NewHTTPPageFetcher(client)
	}
	r := &PageResolver{
		service:   service,
		client:    client,
		pages:     pages,
		oembedURL: defaultOEmbedURL,
		watchBase: defaultWatchBase,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the candidate behind rawURL.
func (r *PageResolver) Resolve(ctx context.Context, rawURL, apiKey string) (*domain.Candidate, error) {
	videoID := domain.ExtractVideoID(rawURL)
	if videoID == "" {
		return nil, fmt.Errorf("not a youtube video url: %q", rawURL)
	}

	if apiKey != "" && r.service != nil {
		c, err := r.service.Video(ctx, apiKey, videoID)
		if err == nil && c != nil {
			return c, nil
		}
		if err != nil {
			r.logger.Warn("api lookup failed, falling back to page metadata",
				zap.String("video_id", videoID), zap.Error(err))
		}
	}

	c := &domain.Candidate{
		VideoID:      videoID,
		SourceURL:    domain.WatchURL(videoID),
		ThumbnailURL: domain.ThumbnailURL(videoID),
	}

	if err := r.applyOEmbed(ctx, c); err != nil {
		r.logger.Debug("oembed lookup failed", zap.String("video_id", videoID), zap.Error(err))
	}

	watchURL := r.watchBase + "?" + url.Values{"v": {videoID}}.Encode()
	if page, err := r.pages.FetchPage(ctx, watchURL); err != nil {
		r.logger.Debug("watch page fetch failed", zap.String("video_id", videoID), zap.Error(err))
	} else if err := applyPageMetadata(page, c); err != nil {
		r.logger.Debug("watch page parse failed", zap.String("video_id", videoID), zap.Error(err))
	}

	if r.invidious != nil && (c.Title == "" || c.Duration == 0 || c.Channel == "") {
		if mirrored, err := r.invidious.Video(ctx, videoID); err != nil {
			r.logger.Debug("invidious lookup failed", zap.String("video_id", videoID), zap.Error(err))
		} else {
			fillMissing(c, mirrored)
		}
	}

	if c.Title == "" {
		return nil, fmt.Errorf("no metadata found for video %s", videoID)
	}
	return c, nil
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (r *PageResolver) applyOEmbed(ctx context.Context, c *domain.Candidate) error {
	params := url.Values{}
	params.Set("url", c.SourceURL)
	params.Set("format", "json")

	resp, err := r.client.Get(ctx, r.oembedURL+"?"+params.Encode())
	if err != nil {
		return err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oembed status %d", resp.StatusCode)
	}

	var data oembedResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("decode oembed: %w", err)
	}
	c.Title = strings.TrimSpace(data.Title)
	c.Channel = strings.TrimSpace(data.AuthorName)
	if data.ThumbnailURL != "" {
		c.ThumbnailURL = data.ThumbnailURL
	}
	return nil
}

// applyPageMetadata reads the schema.org and OpenGraph tags of a watch page.
func applyPageMetadata(page string, c *domain.Candidate) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return err
	}

	meta := func(selector string) string {
		v, _ := doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(v)
	}

	if c.Title == "" {
		c.Title = firstNonEmpty(meta(`meta[property="og:title"]`), meta(`meta[name="title"]`))
	}
	if c.Title == "" {
		c.Title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), "- YouTube"))
	}
	if c.Description == "" {
		c.Description = firstNonEmpty(meta(`meta[property="og:description"]`), meta(`meta[name="description"]`))
	}
	if c.Channel == "" {
		if name, ok := doc.Find(`[itemprop="author"] link[itemprop="name"]`).First().Attr("content"); ok {
			c.Channel = strings.TrimSpace(name)
		}
	}
	if c.ChannelID == "" {
		c.ChannelID = meta(`meta[itemprop="channelId"]`)
	}
	if d := meta(`meta[itemprop="duration"]`); d != "" {
		if seconds, err := ParseISODuration(d); err == nil {
			c.Duration = seconds
		}
	}
	if v := meta(`meta[itemprop="interactionCount"]`); v != "" {
		c.ViewCount = parseCount(v)
	}
	if published := firstNonEmpty(meta(`meta[itemprop="datePublished"]`), meta(`meta[itemprop="uploadDate"]`)); published != "" {
		c.PublishedAt = parseDate(published)
	}
	if keywords := meta(`meta[name="keywords"]`); keywords != "" && len(c.Tags) == 0 {
		for _, k := range strings.Split(keywords, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Tags = append(c.Tags, k)
			}
		}
	}
	return nil
}

func parseDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func fillMissing(dst *domain.Candidate, src *domain.Candidate) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Channel == "" {
		dst.Channel = src.Channel
	}
	if dst.ChannelID == "" {
		dst.ChannelID = src.ChannelID
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Duration == 0 {
		dst.Duration = src.Duration
	}
	if dst.ViewCount == 0 {
		dst.ViewCount = src.ViewCount
	}
	if dst.LikeCount == 0 {
		dst.LikeCount = src.LikeCount
	}
	if dst.PublishedAt.IsZero() {
		dst.PublishedAt = src.PublishedAt
	}
	if len(dst.Tags) == 0 {
		dst.Tags = src.Tags
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
