package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/service"
)

type ChannelHandler struct {
	s service.ChannelService
}

func NewChannelHandler(s service.ChannelService) *ChannelHandler {
	return &ChannelHandler{s: s}
}

func (h *ChannelHandler) GetChannel(c *fiber.Ctx) error {
	userID := GetUserID(c)

	channel, err := h.s.Info(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoChannel) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No connected channel",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get channel",
		})
	}

	return c.Status(fiber.StatusOK).JSON(channel)
}

type connectChannelRequest struct {
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title"`
}

func (h *ChannelHandler) ConnectChannel(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req connectChannelRequest
	if err := c.BodyParser(&req); err != nil || req.ChatID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	id, err := h.s.Connect(c.Context(), userID, req.ChatID, req.Title)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to connect channel",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

func (h *ChannelHandler) DisconnectChannel(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if err := h.s.Disconnect(c.Context(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect channel",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
