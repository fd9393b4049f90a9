package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

// PostRepository is the single source of truth for post records.
//
// Claiming: a post becomes "in flight" by acquiring a lease (claimed_until).
// While the lease holds, the post is excluded from every other claimer, both
// the periodic scanner and manual dispatch requests. The lease is persisted,
// so exclusion survives process restarts; a crashed worker's lease simply
// expires and the post returns to candidacy.
type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error)
	Update(ctx context.Context, id int64, upd *transfer.PostUpdate) (bool, error)
	SetSchedule(ctx context.Context, id int64, scheduledAt *time.Time) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Post, error)
	ClaimOne(ctx context.Context, id int64, now time.Time, lease time.Duration) (*models.Post, error)
	ReleaseClaim(ctx context.Context, id int64) error
	MarkDelivered(ctx context.Context, id int64) (bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	CheckByOwner(ctx context.Context, id, userID int64) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = "id, user_id, title, body, media_ref, scheduled_at, delivered, created_at, updated_at"

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Title, &post.Body, &post.MediaRef,
		&post.ScheduledAt, &post.Delivered, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, title, body, media_ref, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Title, post.Body, post.MediaRef, post.ScheduledAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Title, post.Body, post.MediaRef, post.ScheduledAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

// ListByOwner orders scheduled posts first by ascending scheduled_at, then
// unscheduled drafts by descending id (newest first). The front of the list
// is always "next to go out".
func (r *postRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		ORDER BY scheduled_at ASC NULLS LAST, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Update(ctx context.Context, id int64, upd *transfer.PostUpdate) (bool, error) {
	query := `
		UPDATE posts
		SET title = COALESCE($2, title),
			body = COALESCE($3, body),
			media_ref = COALESCE($4, media_ref),
			updated_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, upd.Title, upd.Body, upd.MediaRef, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetSchedule arms or cancels automatic delivery. A non-nil time also resets
// the delivered flag so a previously attempted post can go out again.
func (r *postRepository) SetSchedule(ctx context.Context, id int64, scheduledAt *time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET scheduled_at = $2,
			delivered = CASE WHEN $2::timestamptz IS NULL THEN delivered ELSE FALSE END,
			updated_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, scheduledAt, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimDue atomically leases up to limit due candidates. SKIP LOCKED keeps
// concurrent claimers from blocking on each other's rows.
func (r *postRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Post, error) {
	query := `
		UPDATE posts
		SET claimed_until = $2
		WHERE id IN (
			SELECT id FROM posts
			WHERE scheduled_at IS NOT NULL
			  AND scheduled_at <= $1
			  AND delivered = FALSE
			  AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY scheduled_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + postColumns

	rows, err := r.db.QueryContext(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ClaimOne leases a single post for manual dispatch. It returns nil when the
// post does not exist, is already delivered, or is currently leased by the
// scanner; the caller decides which of those it is.
func (r *postRepository) ClaimOne(ctx context.Context, id int64, now time.Time, lease time.Duration) (*models.Post, error) {
	query := `
		UPDATE posts
		SET claimed_until = $3
		WHERE id = $1
		  AND delivered = FALSE
		  AND (claimed_until IS NULL OR claimed_until <= $2)
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, now, now.Add(lease)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ReleaseClaim(ctx context.Context, id int64) error {
	query := `UPDATE posts SET claimed_until = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkDelivered is the terminal transition: flag then delete in one statement.
// A second call, or a call racing an owner delete, affects zero rows and
// reports gone=false, which callers treat as a benign no-op.
func (r *postRepository) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	query := `
		WITH done AS (
			UPDATE posts SET delivered = TRUE WHERE id = $1 RETURNING id
		)
		DELETE FROM posts WHERE id IN (SELECT id FROM done)
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *postRepository) CheckByOwner(ctx context.Context, id, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}
