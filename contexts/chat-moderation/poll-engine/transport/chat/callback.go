package chat

import (
	"fmt"
	"regexp"
	"strings"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
)

// Button payload data must stay under the transport's 64 byte cap:
// "poll_vote " plus a 36 char uuid plus " yes" comes to 50.
const voteCallbackPrefix = "poll_vote"

var voteCallbackPattern = regexp.MustCompile(
	`^poll_vote (?P<poll_id>[a-f0-9]{8}-[a-f0-9]{4}-4[a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}) (?P<choice>[a-z_]+)$`,
)

// VoteCallback is the decoded form of a vote button payload.
type VoteCallback struct {
	PollID string
	Choice entities.Choice
}

func EncodeVoteCallback(pollID string, choice entities.Choice) string {
	return fmt.Sprintf("%s %s %s", voteCallbackPrefix, pollID, choice)
}

// DecodeVoteCallback parses a button payload. Malformed payloads and unknown
// choices come back as ErrInvalidChoice; a well-formed payload round-trips
// exactly through EncodeVoteCallback.
func DecodeVoteCallback(data string) (VoteCallback, error) {
	match := voteCallbackPattern.FindStringSubmatch(strings.ToLower(data))
	if match == nil {
		return VoteCallback{}, domainerrors.ErrInvalidChoice
	}
	choice, ok := entities.ParseChoice(match[voteCallbackPattern.SubexpIndex("choice")])
	if !ok {
		return VoteCallback{}, domainerrors.ErrInvalidChoice
	}
	return VoteCallback{
		PollID: match[voteCallbackPattern.SubexpIndex("poll_id")],
		Choice: choice,
	}, nil
}

// IsVoteCallback reports whether the payload is addressed to the vote
// handler, without validating the rest of it.
func IsVoteCallback(data string) bool {
	return strings.HasPrefix(data, voteCallbackPrefix+" ")
}
