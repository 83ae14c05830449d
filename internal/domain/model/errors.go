package model

import "errors"

var (
	// ErrInvalidToken is returned when a watch is started with an empty
	// document token.
	ErrInvalidToken = errors.New("document token cannot be empty")

	// ErrQueueFull reports that a command was rejected by a full queue.
	ErrQueueFull = errors.New("command queue is full")

	// ErrWatchNotFound is returned when an operation names a document that is
	// not being watched.
	ErrWatchNotFound = errors.New("document is not being watched")
)
