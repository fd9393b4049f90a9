package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
)

type ChannelRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Channel, error)
	Upsert(ctx context.Context, channel *models.Channel) (int64, error)
	Remove(ctx context.Context, userID int64) error
}

type channelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) GetByUserID(ctx context.Context, userID int64) (*models.Channel, error) {
	query := `SELECT id, user_id, chat_id, title, created_at FROM channels WHERE user_id = $1`

	var ch models.Channel
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&ch.ID, &ch.UserID, &ch.ChatID, &ch.Title, &ch.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) Upsert(ctx context.Context, channel *models.Channel) (int64, error) {
	query := `
		INSERT INTO channels (user_id, chat_id, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET chat_id = excluded.chat_id, title = excluded.title
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, channel.UserID, channel.ChatID, channel.Title).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *channelRepository) Remove(ctx context.Context, userID int64) error {
	query := `DELETE FROM channels WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
