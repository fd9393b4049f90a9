package service

import (
	"context"
	"fmt"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
)

type ChannelService interface {
	Info(ctx context.Context, userID int64) (*models.Channel, error)
	Connect(ctx context.Context, userID, chatID int64, title string) (int64, error)
	Disconnect(ctx context.Context, userID int64) error
}

type channelService struct {
	cr repository.ChannelRepository
}

func NewChannelService(cr repository.ChannelRepository) ChannelService {
	return &channelService{cr: cr}
}

func (s *channelService) Info(ctx context.Context, userID int64) (*models.Channel, error) {
	channel, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting channel: %w", err)
	}
	if channel == nil {
		return nil, ErrNoChannel
	}
	return channel, nil
}

func (s *channelService) Connect(ctx context.Context, userID, chatID int64, title string) (int64, error) {
	id, err := s.cr.Upsert(ctx, &models.Channel{UserID: userID, ChatID: chatID, Title: title})
	if err != nil {
		return 0, fmt.Errorf("error connecting channel: %w", err)
	}
	return id, nil
}

func (s *channelService) Disconnect(ctx context.Context, userID int64) error {
	if err := s.cr.Remove(ctx, userID); err != nil {
		return fmt.Errorf("error disconnecting channel: %w", err)
	}
	return nil
}
