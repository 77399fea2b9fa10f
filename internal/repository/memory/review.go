package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_update_reviews/internal/domain"
)

// ReviewRepository is an in-memory implementation of domain.ReviewRepository
type ReviewRepository struct {
	mu      sync.RWMutex
	reviews map[string]*domain.Review // keyed by record id
	byKey   map[string]string         // identity key -> record id
	byURL   map[string]string         // source url -> record id
	order   []string                  // record ids in insertion order
}

// NewReviewRepository creates a new in-memory review repository
func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{
		reviews: make(map[string]*domain.Review),
		byKey:   make(map[string]string),
		byURL:   make(map[string]string),
	}
}

// FindByIdentity returns a copy of the review with the given identity key, or nil
func (r *ReviewRepository) FindByIdentity(_ context.Context, key string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		id, ok = r.byURL[key]
	}
	if !ok {
		return nil, nil
	}
	review := *r.reviews[id]
	return &review, nil
}

// Insert stores a new review, rejecting duplicates by identity key or source url
func (r *ReviewRepository) Insert(_ context.Context, review *domain.Review) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := review.IdentityKey()
	if _, exists := r.byKey[key]; exists {
		return "", domain.ErrDuplicateRecord
	}
	if review.SourceURL != "" {
		if _, exists := r.byURL[review.SourceURL]; exists {
			return "", domain.ErrDuplicateRecord
		}
	}

	stored := *review
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.reviews[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.byKey[key] = stored.ID
	if stored.SourceURL != "" {
		r.byURL[stored.SourceURL] = stored.ID
	}

	review.ID = stored.ID
	review.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// ListRecent returns up to limit reviews, newest first
func (r *ReviewRepository) ListRecent(_ context.Context, limit int) ([]*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Review, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		copied := *r.reviews[r.order[i]]
		all = append(all, &copied)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count returns the number of stored reviews
func (r *ReviewRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reviews), nil
}
