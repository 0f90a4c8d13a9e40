package domain

import "errors"

var (
	ErrNoOptions        = errors.New("poll requires at least one option")
	ErrEmptyOption      = errors.New("option label cannot be empty")
	ErrDuplicateOption  = errors.New("duplicate option label")
	ErrInvalidOption    = errors.New("invalid option for this poll")
	ErrEmptyIdentity    = errors.New("identity cannot be empty")
	ErrAlreadyVoted     = errors.New("identity has already voted")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("connection send queue is full")
	ErrSessionNotFound  = errors.New("session not found")
)
