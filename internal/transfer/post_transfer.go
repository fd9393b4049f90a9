package transfer

type PostCreation struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	MediaRef    string `json:"media_ref"`
	ScheduledAt string `json:"scheduled_at"` // RFC 3339, empty = draft
}

// PostUpdate carries a partial update. Nil means "leave unchanged";
// a pointer to the empty string clears the field where clearing is allowed.
type PostUpdate struct {
	Title    *string `json:"title"`
	Body     *string `json:"body"`
	MediaRef *string `json:"media_ref"`
}

type PostSchedule struct {
	ID          int64  `json:"id"`
	ScheduledAt string `json:"scheduled_at"` // RFC 3339
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}
