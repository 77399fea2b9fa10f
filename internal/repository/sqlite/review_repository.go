package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"auto_update_reviews/internal/domain"
)

var reviewColumns = []string{
	"id", "video_id", "title", "movie_title", "reviewer_name", "video_url", "video_type",
	"description", "thumbnail_url", "duration", "view_count", "rating", "published",
	"country", "genre", "movie_type", "series_name", "episode_number", "published_at", "created_at",
}

// reviewRow mirrors video_reviews; older rows may hold NULLs in optional columns.
type reviewRow struct {
	ID            string         `db:"id"`
	VideoID       sql.NullString `db:"video_id"`
	Title         string         `db:"title"`
	MovieTitle    sql.NullString `db:"movie_title"`
	Reviewer      sql.NullString `db:"reviewer_name"`
	VideoURL      string         `db:"video_url"`
	VideoType     sql.NullString `db:"video_type"`
	Description   sql.NullString `db:"description"`
	ThumbnailURL  sql.NullString `db:"thumbnail_url"`
	Duration      sql.NullInt64  `db:"duration"`
	ViewCount     sql.NullInt64  `db:"view_count"`
	Rating        sql.NullInt64  `db:"rating"`
	Published     sql.NullBool   `db:"published"`
	Country       sql.NullString `db:"country"`
	Genre         sql.NullString `db:"genre"`
	MovieType     sql.NullString `db:"movie_type"`
	SeriesName    sql.NullString `db:"series_name"`
	EpisodeNumber sql.NullInt64  `db:"episode_number"`
	PublishedAt   sql.NullTime   `db:"published_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r reviewRow) toDomain() *domain.Review {
	return &domain.Review{
		ID:            r.ID,
		VideoID:       r.VideoID.String,
		Title:         r.Title,
		MovieTitle:    r.MovieTitle.String,
		Reviewer:      r.Reviewer.String,
		SourceURL:     r.VideoURL,
		VideoType:     r.VideoType.String,
		Description:   r.Description.String,
		ThumbnailURL:  r.ThumbnailURL.String,
		Duration:      int(r.Duration.Int64),
		ViewCount:     r.ViewCount.Int64,
		Rating:        int(r.Rating.Int64),
		Published:     r.Published.Bool,
		Country:       r.Country.String,
		Genre:         r.Genre.String,
		MovieType:     domain.MovieType(r.MovieType.String),
		SeriesName:    r.SeriesName.String,
		EpisodeNumber: int(r.EpisodeNumber.Int64),
		PublishedAt:   r.PublishedAt.Time,
		CreatedAt:     r.CreatedAt,
	}
}

// ReviewRepository is a SQLite implementation of domain.ReviewRepository.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new ReviewRepository backed by SQLite.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindByIdentity returns the review whose video id or url equals key, or nil.
func (r *ReviewRepository) FindByIdentity(ctx context.Context, key string) (*domain.Review, error) {
	return findByIdentity(ctx, r.db, key)
}

func findByIdentity(ctx context.Context, q sqlx.QueryerContext, key string) (*domain.Review, error) {
	query, args, err := psql.Select(reviewColumns...).
		From("video_reviews").
		Where(sq.Or{sq.Eq{"video_id": key}, sq.Eq{"video_url": key}}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build identity query: %w", err)
	}

	var row reviewRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find review %s: %w", key, err)
	}
	return row.toDomain(), nil
}

// Insert checks for an existing record and inserts the review in one transaction.
func (r *ReviewRepository) Insert(ctx context.Context, review *domain.Review) (string, error) {
	id := review.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := review.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, key := range []string{review.IdentityKey(), review.SourceURL} {
			if key == "" {
				continue
			}
			existing, err := findByIdentity(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrDuplicateRecord
			}
		}

		query, args, err := psql.Insert("video_reviews").
			Columns(reviewColumns...).
			Values(
				id, nullableString(review.VideoID), review.Title, review.MovieTitle, review.Reviewer,
				review.SourceURL, review.VideoType, review.Description, review.ThumbnailURL,
				review.Duration, review.ViewCount, review.Rating, review.Published,
				review.Country, review.Genre, string(review.MovieType), review.SeriesName,
				nullableInt(review.EpisodeNumber), nullableTime(review.PublishedAt), createdAt.UTC(),
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isConstraintViolation(err) {
				return domain.ErrDuplicateRecord
			}
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	review.ID = id
	review.CreatedAt = createdAt
	return id, nil
}

// ListRecent returns up to limit reviews, newest first.
func (r *ReviewRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Review, error) {
	builder := psql.Select(reviewColumns...).
		From("video_reviews").
		OrderBy("created_at DESC", "rowid DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list recent reviews: %w", err)
	}

	reviews := make([]*domain.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, row.toDomain())
	}
	return reviews, nil
}

// Count returns the number of stored reviews.
func (r *ReviewRepository) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("video_reviews").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return count, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
