package errors

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrChatNotFound  = errors.New("chat not found")
	ErrInvalidUserID = errors.New("user id must be non-negative")
	ErrInvalidChatID = errors.New("chat id must be negative")
)
