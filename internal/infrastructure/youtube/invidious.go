package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"auto_update_reviews/internal/domain"
	httpclient "auto_update_reviews/internal/infrastructure/http"
)

// PublicInstances lists Invidious instances tried in order
var PublicInstances = []string{
	"https://invidious.fdn.fr",
	"https://invidious.privacydev.net",
	"https://inv.tux.pizza",
	"https://yt.artemislena.eu",
}

// InvidiousClient reads video metadata from Invidious mirrors (no API key, no bot checks)
type InvidiousClient struct {
	client    *httpclient.HTTPClient
	instances []string
}

// NewInvidiousClient creates a client. Empty instances means PublicInstances.
func NewInvidiousClient(client *httpclient.HTTPClient, instances ...string) *InvidiousClient {
	if len(instances) == 0 {
		instances = PublicInstances
	}
	return &InvidiousClient{client: client, instances: instances}
}

type invidiousVideo struct {
	VideoID       string   `json:"videoId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Author        string   `json:"author"`
	AuthorID      string   `json:"authorId"`
	LengthSeconds int      `json:"lengthSeconds"`
	ViewCount     int64    `json:"viewCount"`
	LikeCount     int64    `json:"likeCount"`
	Published     int64    `json:"published"`
	Keywords      []string `json:"keywords"`
}

// Video returns the metadata of videoID from the first instance that answers.
func (c *InvidiousClient) Video(ctx context.Context, videoID string) (*domain.Candidate, error) {
	var lastErr error
	for _, instance := range c.instances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		video, err := c.fetch(ctx, strings.TrimRight(instance, "/"), videoID)
		if err != nil {
			lastErr = err
			continue // Try next instance
		}
		return video, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no invidious instances configured")
	}
	return nil, fmt.Errorf("failed to get video %s from all Invidious instances: %w", videoID, lastErr)
}

func (c *InvidiousClient) fetch(ctx context.Context, instance, videoID string) (*domain.Candidate, error) {
	resp, err := c.client.Get(ctx, fmt.Sprintf("%s/api/v1/videos/%s", instance, videoID))
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", instance, resp.StatusCode)
	}

	var data invidiousVideo
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", instance, err)
	}
	if data.Title == "" {
		return nil, fmt.Errorf("%s: empty title", instance)
	}

	candidate := &domain.Candidate{
		VideoID:      videoID,
		Title:        data.Title,
		Description:  data.Description,
		Channel:      data.Author,
		ChannelID:    data.AuthorID,
		Duration:     data.LengthSeconds,
		ViewCount:    data.ViewCount,
		LikeCount:    data.LikeCount,
		SourceURL:    domain.WatchURL(videoID),
		ThumbnailURL: domain.ThumbnailURL(videoID),
		Tags:         data.Keywords,
	}
	if data.Published > 0 {
		candidate.PublishedAt = time.Unix(data.Published, 0).UTC()
	}
	return candidate, nil
}
