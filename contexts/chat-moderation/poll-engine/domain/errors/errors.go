package errors

import (
	"errors"
	"fmt"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
)

var (
	ErrPollNotFound      = errors.New("poll not found")
	ErrVoteNotFound      = errors.New("vote not found")
	ErrPollEnded         = errors.New("poll has already ended")
	ErrInvalidChoice     = errors.New("invalid vote choice")
	ErrInvalidTarget     = errors.New("target cannot be put up for a poll")
	ErrDuplicateOpenPoll = errors.New("an open poll already exists for this target")

	ErrMessageNotFound   = errors.New("chat message not found")
	ErrMissingCapability = errors.New("missing chat permission")
	ErrTransport         = errors.New("chat transport failure")
)

// PollLimitReachedError rejects a non-forced creation that would exceed the
// sliding-window quota. It carries enough context for the user-facing
// "try again later" message.
type PollLimitReachedError struct {
	ChatID int64
	Kind   entities.PollKind
	At     time.Time
	Window time.Duration
}

func (e *PollLimitReachedError) Error() string {
	return fmt.Sprintf("poll limit reached for kind %s in chat %d within %s", e.Kind, e.ChatID, e.Window)
}

func IsPollLimitReached(err error) bool {
	var target *PollLimitReachedError
	return errors.As(err, &target)
}
