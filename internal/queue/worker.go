package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
)

func (q *Queue) HandleGenerateDraftsTask(ctx context.Context, task *asynq.Task) error {
	var payload GenerateDraftsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.GenerateDrafts(ctx, payload)
}

// GenerateDrafts calls the content generator and stores the returned drafts
// unscheduled; the owner reviews and schedules them explicitly.
func (q *Queue) GenerateDrafts(ctx context.Context, payload GenerateDraftsPayload) error {
	drafts, err := q.gen.GenerateDrafts(ctx, payload.Prompt, payload.Count)
	if err != nil {
		slog.Error("draft generation failed", "user_id", payload.UserID, "error", err)
		return err
	}

	created := 0
	for _, draft := range drafts {
		if draft.Title == "" {
			continue
		}
		post := models.Post{
			UserID: payload.UserID,
			Title:  draft.Title,
			Body:   draft.Body,
		}
		if _, err := q.pr.Create(ctx, nil, &post); err != nil {
			slog.Error("storing generated draft failed", "user_id", payload.UserID, "error", err)
			continue
		}
		created++
	}

	if created > 0 {
		q.bus.Publish(notify.Event{Type: notify.EventPostsUpdated})
	}
	return nil
}
