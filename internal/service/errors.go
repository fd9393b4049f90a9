package service

import "errors"

var (
	ErrNotFound    = errors.New("post not found")
	ErrEmptyTitle  = errors.New("title cannot be empty")
	ErrBadSchedule = errors.New("invalid schedule timestamp")
	ErrNoChannel   = errors.New("no connected channel")
)
