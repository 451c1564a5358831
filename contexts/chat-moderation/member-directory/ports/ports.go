package ports

import (
	"context"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
)

type IdentityRepository interface {
	GetUser(ctx context.Context, userID int64) (entities.User, error)
	SaveUser(ctx context.Context, user entities.User) error
	GetChat(ctx context.Context, chatID int64) (entities.Chat, error)
	SaveChat(ctx context.Context, chat entities.Chat) error
}

// ParticipantGateway is the transport-side lookup surface. Fetch failures for
// unknown entities map to the domain not-found sentinels; FetchParticipant
// reports absence through found rather than an error.
type ParticipantGateway interface {
	FetchUser(ctx context.Context, userID int64) (entities.User, error)
	FetchChat(ctx context.Context, chatID int64) (entities.Chat, error)
	FetchParticipant(ctx context.Context, chatID int64, userID int64) (entities.Participant, bool, error)
}

// CachedParticipant is a cache entry for a participant lookup. Present=false
// entries are negative results: the transport said the user is not in the
// chat, and repeating the question before expiry would only repeat the
// answer.
type CachedParticipant struct {
	Participant entities.Participant
	Present     bool
	ExpiresAt   time.Time
}

type ParticipantCache interface {
	Get(chatID int64, userID int64, now time.Time) (CachedParticipant, bool)
	Put(chatID int64, userID int64, entry CachedParticipant)
}

type Clock interface {
	Now() time.Time
}
