package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram message size limits.
const (
	telegramTextLimit    = 4096
	telegramCaptionLimit = 1024
)

// TelegramGateway posts into the owner's connected channel through one
// service bot. The bot must be an admin of every destination channel.
type TelegramGateway struct {
	bot *tele.Bot
}

func NewTelegramGateway(token string) (*TelegramGateway, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramGateway{bot: b}, nil
}

func (g *TelegramGateway) Deliver(ctx context.Context, dest Destination, msg Message) Outcome {
	select {
	case <-ctx.Done():
		return Transient(ctx.Err().Error())
	default:
	}

	chat := &tele.Chat{ID: dest.ChatID}

	var err error
	if msg.MediaURL != "" {
		photo := &tele.Photo{
			File:    tele.FromURL(msg.MediaURL),
			Caption: TrimCaption(msg.Caption, telegramCaptionLimit),
		}
		_, err = g.bot.Send(chat, photo)
	} else {
		_, err = g.bot.Send(chat, TrimCaption(msg.Caption, telegramTextLimit))
	}
	if err != nil {
		out := ClassifyTelegramError(err)
		slog.Info("telegram delivery failed",
			"chat_id", dest.ChatID, "permanent", out.Status == StatusPermanent, "reason", out.Reason)
		return out
	}

	return Success()
}

// ClassifyTelegramError maps a Bot API error to a delivery outcome.
// 4xx responses (bad chat, bot kicked from the channel, malformed media) are
// permanent: retrying the same request cannot succeed. Flood waits, network
// faults and 5xx responses are transient.
func ClassifyTelegramError(err error) Outcome {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return Transient(err.Error())
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return Permanent(err.Error())
		}
		return Transient(err.Error())
	}

	return Transient(err.Error())
}
