package models

import "time"

// Channel is the owner's connected Telegram channel: the per-user delivery
// destination the dispatch engine posts into.
type Channel struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ChatID    int64     `db:"chat_id" json:"chat_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
