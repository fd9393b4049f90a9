package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/dispatch"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/service"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

type PostHandler struct {
	s      service.PostService
	engine *dispatch.Engine
}

func NewPostHandler(s service.PostService, engine *dispatch.Engine) *PostHandler {
	return &PostHandler{s: s, engine: engine}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	postID, err := h.s.Create(c.Context(), userID, &pc)
	if err != nil {
		return postError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": postID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.Info(c.Context(), userID, int64(postID))
		if err != nil {
			return postError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

type postUpdateRequest struct {
	ID int64 `json:"id"`
	transfer.PostUpdate
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req postUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Update(c.Context(), userID, req.ID, &req.PostUpdate); err != nil {
		return postError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PostSchedule
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled_at timestamp",
		})
	}

	if err := h.s.Schedule(c.Context(), userID, req.ID, scheduledAt); err != nil {
		return postError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) CancelSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.CancelSchedule(c.Context(), userID, int64(postID)); err != nil {
		return postError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// DispatchPost is the manual "send now" path. The delivery outcome comes back
// synchronously: the claim, send and cleanup all happen inside this request.
func (h *PostHandler) DispatchPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	// Ownership is resolved before the engine gets involved.
	if _, err := h.s.Info(c.Context(), userID, int64(postID)); err != nil {
		return postError(c, err)
	}

	outcome, err := h.engine.DispatchNow(c.Context(), int64(postID))
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		case errors.Is(err, dispatch.ErrBusy):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Delivery already in flight",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	if !outcome.OK() {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": outcome.Reason,
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return postError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func postError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	case errors.Is(err, service.ErrEmptyTitle), errors.Is(err, service.ErrBadSchedule):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
