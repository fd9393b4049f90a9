package models

import "time"

type Post struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body,omitempty"`
	MediaRef    string     `db:"media_ref" json:"media_ref,omitempty"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Delivered   bool       `db:"delivered" json:"delivered"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DueAt reports whether the post is a dispatch candidate at the given time.
// A post without a schedule is a draft and never picked up by the scanner.
func (p *Post) DueAt(now time.Time) bool {
	return p.ScheduledAt != nil && !p.ScheduledAt.After(now) && !p.Delivered
}
