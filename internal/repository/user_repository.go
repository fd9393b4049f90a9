package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
)

// UserRepository exists for the legacy api-key requester resolution only;
// registration and credential management live outside this service.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, bool, error)
	GetByApiKey(ctx context.Context, apiKey string) (*int64, bool, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	var user models.User
	query := "SELECT id, email, name FROM users WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &user, true, nil
}

func (r *userRepository) GetByApiKey(ctx context.Context, apiKey string) (*int64, bool, error) {
	var userID int64
	query := "SELECT user_id FROM api_keys WHERE api_key = $1"
	err := r.db.QueryRowContext(ctx, query, apiKey).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &userID, true, nil
}
