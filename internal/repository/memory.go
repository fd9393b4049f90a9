package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

// NewMemoryPostRepository returns a PostRepository backed by a map, with the
// same transition and claim semantics as the Postgres implementation. It
// backs the engine and service tests; production always runs on Postgres.
func NewMemoryPostRepository() PostRepository {
	return &memoryPostRepository{posts: map[int64]*memPost{}}
}

type memPost struct {
	post         models.Post
	claimedUntil time.Time
}

type memoryPostRepository struct {
	mu    sync.Mutex
	seq   int64
	posts map[int64]*memPost
}

func (r *memoryPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	stored := *post
	stored.ID = r.seq
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.posts[stored.ID] = &memPost{post: stored}
	return stored.ID, nil
}

func (r *memoryPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	post := p.post
	return &post, nil
}

func (r *memoryPostRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []*models.Post
	for _, p := range r.posts {
		if p.post.UserID == userID {
			post := p.post
			posts = append(posts, &post)
		}
	}

	// Scheduled first by ascending scheduled_at, unscheduled last by
	// descending id; same contract as the SQL ORDER BY.
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch {
		case a.ScheduledAt == nil && b.ScheduledAt == nil:
			return a.ID > b.ID
		case a.ScheduledAt == nil:
			return false
		case b.ScheduledAt == nil:
			return true
		case !a.ScheduledAt.Equal(*b.ScheduledAt):
			return a.ScheduledAt.Before(*b.ScheduledAt)
		default:
			return a.ID > b.ID
		}
	})
	return posts, nil
}

func (r *memoryPostRepository) Update(ctx context.Context, id int64, upd *transfer.PostUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	if upd.Title != nil {
		p.post.Title = *upd.Title
	}
	if upd.Body != nil {
		p.post.Body = *upd.Body
	}
	if upd.MediaRef != nil {
		p.post.MediaRef = *upd.MediaRef
	}
	p.post.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryPostRepository) SetSchedule(ctx context.Context, id int64, scheduledAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	if scheduledAt != nil {
		at := *scheduledAt
		p.post.ScheduledAt = &at
		p.post.Delivered = false
	} else {
		p.post.ScheduledAt = nil
	}
	p.post.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryPostRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*memPost
	for _, p := range r.posts {
		if p.post.DueAt(now) && (p.claimedUntil.IsZero() || !p.claimedUntil.After(now)) {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].post.ScheduledAt.Before(*candidates[j].post.ScheduledAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var claimed []*models.Post
	for _, p := range candidates {
		p.claimedUntil = now.Add(lease)
		post := p.post
		claimed = append(claimed, &post)
	}
	return claimed, nil
}

func (r *memoryPostRepository) ClaimOne(ctx context.Context, id int64, now time.Time, lease time.Duration) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.post.Delivered {
		return nil, nil
	}
	if !p.claimedUntil.IsZero() && p.claimedUntil.After(now) {
		return nil, nil
	}
	p.claimedUntil = now.Add(lease)
	post := p.post
	return &post, nil
}

func (r *memoryPostRepository) ReleaseClaim(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.posts[id]; ok {
		p.claimedUntil = time.Time{}
	}
	return nil
}

func (r *memoryPostRepository) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

func (r *memoryPostRepository) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

func (r *memoryPostRepository) CheckByOwner(ctx context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	return ok && p.post.UserID == userID, nil
}
