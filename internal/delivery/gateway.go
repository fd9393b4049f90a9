package delivery

import "context"

// Status of one delivery attempt. Both failure kinds leave the post in the
// store for a later retry; the split exists so callers can log and surface
// them differently.
type Status int

const (
	StatusSuccess Status = iota
	StatusTransient
	StatusPermanent
)

type Outcome struct {
	Status Status
	Reason string
}

func Success() Outcome {
	return Outcome{Status: StatusSuccess}
}

func Transient(reason string) Outcome {
	return Outcome{Status: StatusTransient, Reason: reason}
}

func Permanent(reason string) Outcome {
	return Outcome{Status: StatusPermanent, Reason: reason}
}

func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Destination is the per-user delivery credential set: the chat the owner
// connected as their channel.
type Destination struct {
	ChatID int64
}

// Message is a rendered post: caption plus an optional media URL.
type Message struct {
	Caption  string
	MediaURL string
}

// Gateway sends one rendered post to one destination.
type Gateway interface {
	Deliver(ctx context.Context, dest Destination, msg Message) Outcome
}
