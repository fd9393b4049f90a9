package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/delivery"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Info(ctx context.Context, userID, postID int64) (*models.Post, error)
	Update(ctx context.Context, userID, postID int64, upd *transfer.PostUpdate) error
	Schedule(ctx context.Context, userID, postID int64, scheduledAt time.Time) error
	CancelSchedule(ctx context.Context, userID, postID int64) error
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr    repository.PostRepository
	media MediaService
	bus   notify.Bus
}

func NewPostService(pr repository.PostRepository, media MediaService, bus notify.Bus) PostService {
	return &postService{pr: pr, media: media, bus: bus}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error) {
	if pc == nil || pc.Title == "" {
		return 0, ErrEmptyTitle
	}

	post := models.Post{
		UserID:   userID,
		Title:    pc.Title,
		Body:     pc.Body,
		MediaRef: pc.MediaRef,
	}

	if pc.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, pc.ScheduledAt)
		if err != nil {
			slog.Info(err.Error())
			return 0, ErrBadSchedule
		}
		post.ScheduledAt = &scheduledAt
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	s.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	return postID, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Info(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, userID, postID int64, upd *transfer.PostUpdate) error {
	if upd.Title != nil && *upd.Title == "" {
		return ErrEmptyTitle
	}

	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	ok, err := s.pr.Update(ctx, postID, upd)
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	// Replacing or clearing a stored media ref orphans the old object.
	if upd.MediaRef != nil && *upd.MediaRef != post.MediaRef {
		s.releaseMedia(ctx, post.MediaRef)
	}

	s.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	return nil
}

func (s *postService) Schedule(ctx context.Context, userID, postID int64, scheduledAt time.Time) error {
	return s.setSchedule(ctx, userID, postID, &scheduledAt)
}

func (s *postService) CancelSchedule(ctx context.Context, userID, postID int64) error {
	return s.setSchedule(ctx, userID, postID, nil)
}

func (s *postService) setSchedule(ctx context.Context, userID, postID int64, scheduledAt *time.Time) error {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return err
	}

	ok, err := s.pr.SetSchedule(ctx, postID, scheduledAt)
	if err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	s.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	return nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	ok, err := s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	if !ok {
		// Vanished between the ownership probe and the delete; a concurrent
		// successful delivery already cleaned up.
		return ErrNotFound
	}

	s.releaseMedia(ctx, post.MediaRef)

	s.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	return nil
}

// owned resolves a post only when it exists and belongs to userID. A foreign
// post reads as not found so ownership is never leaked.
func (s *postService) owned(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if userID == 0 || postID == 0 {
		return nil, ErrNotFound
	}

	isOwner, err := s.pr.CheckByOwner(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, ErrNotFound
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

func (s *postService) releaseMedia(ctx context.Context, mediaRef string) {
	if mediaRef == "" || delivery.IsExternalRef(mediaRef) {
		return
	}
	if err := s.media.Delete(ctx, mediaRef); err != nil {
		slog.Warn("releasing media failed", "media_ref", mediaRef, "error", err)
	}
}
