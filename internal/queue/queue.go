package queue

import (
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func EnqueueGenerateDrafts(asynqClient *asynq.Client, payload GenerateDraftsPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeGenerateDrafts, taskPayload)

	_, err = asynqClient.Enqueue(task)
	if err != nil {
		return err
	}

	slog.Info("generation task enqueued", "user_id", payload.UserID)
	return nil
}
