package queue

import (
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/service"
)

type Queue struct {
	pr  repository.PostRepository
	gen service.Generator
	bus notify.Bus
}

func NewQueue(pr repository.PostRepository, gen service.Generator, bus notify.Bus) *Queue {
	return &Queue{
		pr:  pr,
		gen: gen,
		bus: bus,
	}
}

const TaskTypeGenerateDrafts = "generate:drafts"

type GenerateDraftsPayload struct {
	UserID int64  `json:"user_id"`
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}
