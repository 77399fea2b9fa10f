package domain

import (
	"context"
	"strings"
	"time"
)

// Candidate is an unvalidated, unpersisted video that might be a movie review.
type Candidate struct {
	// VideoID is the platform-unique video id (the identity key)
	VideoID string

	// Title is the video title
	Title string

	// Description is the video description
	Description string

	// Channel is the reviewer / channel display name
	Channel string

	// ChannelID is the platform channel id, if known
	ChannelID string

	// Duration is the video length in seconds
	Duration int

	// ViewCount is the number of views at fetch time
	ViewCount int64

	// LikeCount is the number of likes at fetch time
	LikeCount int64

	// PublishedAt is when the video was published on the platform
	PublishedAt time.Time

	// SourceURL is the canonical watch URL
	SourceURL string

	// ThumbnailURL is the best available thumbnail
	ThumbnailURL string

	// Tags are platform tags, used as classification hints
	Tags []string

	// Query is the search query that produced this candidate
	Query string

	// Synthetic marks candidates fabricated by the fallback generator
	Synthetic bool
}

// IdentityKey returns the key used for exact-duplicate and idempotency checks.
// It prefers the platform id, then the id embedded in the source URL, then the URL itself.
func (c Candidate) IdentityKey() string {
	return IdentityKey(c.VideoID, c.SourceURL)
}

// IdentityKey derives an identity key from a platform id and a source URL.
func IdentityKey(videoID, sourceURL string) string {
	if id := strings.TrimSpace(videoID); id != "" {
		return id
	}
	if id := ExtractVideoID(sourceURL); id != "" {
		return id
	}
	return strings.TrimSpace(sourceURL)
}

// Verdict is the outcome of quality validation.
type Verdict struct {
	Accepted bool
	Reasons  []string
}

// Reject appends a rejection reason and marks the verdict as rejected.
func (v *Verdict) Reject(reason string) {
	v.Accepted = false
	v.Reasons = append(v.Reasons, reason)
}

// CandidateSource produces raw candidates for a named query.
type CandidateSource interface {
	Fetch(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}

// RunAware is implemented by sources that keep per-run state, such as a sticky fallback flag.
type RunAware interface {
	BeginRun()
}
