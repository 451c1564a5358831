package ports

import (
	"context"
	"encoding/json"
	"time"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
)

type PollRepository interface {
	// CreatePoll inserts an open poll. Concurrent creators racing for the same
	// (chat, target, kind) lose with domain errors.ErrDuplicateOpenPoll.
	CreatePoll(ctx context.Context, poll entities.Poll) error
	GetPoll(ctx context.Context, pollID string) (entities.Poll, error)
	// ListOpenPolls returns open polls for the key, newest first.
	ListOpenPolls(ctx context.Context, chatID int64, targetID int64, kind entities.PollKind) ([]entities.Poll, error)
	ListOpenPollsByChat(ctx context.Context, chatID int64) ([]entities.Poll, error)
	SetPollMessageID(ctx context.Context, pollID string, messageID int64) error
	// EndPoll flips ended false->true. It reports whether this call performed
	// the transition, so finalization side effects run at most once.
	EndPoll(ctx context.Context, pollID string, endedAt time.Time) (bool, error)
	DeletePoll(ctx context.Context, pollID string) error
	// CountRecentPolls counts non-forced polls of the kind created in the chat
	// at or after since.
	CountRecentPolls(ctx context.Context, chatID int64, kind entities.PollKind, since time.Time) (int, error)
}

type VoteRepository interface {
	SaveVote(ctx context.Context, vote entities.Vote) error
	GetVoteByVoter(ctx context.Context, pollID string, voterID int64) (entities.Vote, bool, error)
	CountVotesByChoice(ctx context.Context, pollID string) (map[entities.Choice]int, error)
	// ListVotersByChoice returns voter ids ordered by first-cast time.
	ListVotersByChoice(ctx context.Context, pollID string, choice entities.Choice) ([]int64, error)
}

// ChatGateway is the consumed transport capability set. Implementations map
// their error conditions onto the domain errors sentinels
// (ErrMessageNotFound, ErrMissingCapability, ErrTransport).
type ChatGateway interface {
	SendReply(ctx context.Context, chatID int64, replyToMessageID int64, text string, buttons []Button) (int64, error)
	EditMessage(ctx context.Context, chatID int64, messageID int64, text string, buttons []Button) error
	GetMessage(ctx context.Context, chatID int64, messageID int64) (ChatMessage, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error
	RevokeAccess(ctx context.Context, chatID int64, userID int64) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// ModerationGateway is the slice of ChatGateway the enforcement executor
// needs.
type ModerationGateway interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error
	RevokeAccess(ctx context.Context, chatID int64, userID int64) error
}

// EnforcementOutcome reports what the executor managed to do for a finalized
// kick decision. Missing-permission flags feed the advisory note appended to
// the result message; they are never hard errors.
type EnforcementOutcome struct {
	Attempted               bool
	MessageDeleted          bool
	AccessRevoked           bool
	MissingDeletePermission bool
	MissingBanPermission    bool
}

type Enforcer interface {
	Enforce(ctx context.Context, poll entities.Poll) EnforcementOutcome
}

type Button struct {
	Label string
	Data  string
}

type ChatMessage struct {
	MessageID int64
	ChatID    int64
	AuthorID  int64
	Text      string
}

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SourceService string          `json:"source_service"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	Status       string
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event EventEnvelope) error
}

type OutboxRepository interface {
	OutboxWriter
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
