package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/queue"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/transfer"
)

type GenerateHandler struct {
	AsynqClient *asynq.Client
}

func NewGenerateHandler(asynqClient *asynq.Client) *GenerateHandler {
	return &GenerateHandler{AsynqClient: asynqClient}
}

// GenerateDrafts hands the prompt to the background worker; drafts show up
// through the regular list endpoint once a "posts_updated" signal arrives.
func (h *GenerateHandler) GenerateDrafts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	err := queue.EnqueueGenerateDrafts(h.AsynqClient, queue.GenerateDraftsPayload{
		UserID: userID,
		Prompt: req.Prompt,
		Count:  req.Count,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling generation",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Generation scheduled",
	})
}
