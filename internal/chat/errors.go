package chat

import "errors"

var (
	ErrRoomNotFound = errors.New("chat room not found")
	ErrValidation   = errors.New("invalid chat message")
	ErrStorage      = errors.New("chat store unavailable")
)
