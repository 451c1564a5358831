package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
	"bobbot/contexts/chat-moderation/member-directory/ports"
)

const (
	defaultUserStaleness  = 60 * time.Second
	defaultChatStaleness  = 120 * time.Second
	defaultParticipantTTL = 3 * time.Minute
)

type Service struct {
	Repo    ports.IdentityRepository
	Gateway ports.ParticipantGateway
	Cache   ports.ParticipantCache
	Clock   ports.Clock

	// Zero values fall back to the defaults above.
	UserStaleness  time.Duration
	ChatStaleness  time.Duration
	ParticipantTTL time.Duration

	Logger *slog.Logger
}

// GetUser returns the mirrored profile for the user, refreshing it from the
// transport when the stored copy is older than the staleness budget. A user
// the mirror has never seen is fetched and stored on the spot.
func (s Service) GetUser(ctx context.Context, userID int64) (entities.User, error) {
	if userID < 0 {
		return entities.User{}, domainerrors.ErrInvalidUserID
	}

	user, err := s.Repo.GetUser(ctx, userID)
	known := true
	if err != nil {
		if !errors.Is(err, domainerrors.ErrUserNotFound) {
			return entities.User{}, err
		}
		known = false
	}

	if known && !s.stale(user.LastUpdate, s.userStaleness()) {
		return user, nil
	}

	fresh, err := s.Gateway.FetchUser(ctx, userID)
	if err != nil {
		if known {
			// Keep serving the stale mirror when the transport is flaky.
			s.logger().Warn("user refresh failed, serving stale profile",
				"event", "member_directory_user_refresh_failed",
				"module", "chat-moderation/member-directory",
				"layer", "application",
				"user_id", userID,
				"error", err.Error(),
			)
			return user, nil
		}
		return entities.User{}, err
	}
	fresh.LastUpdate = s.now()
	if err := s.Repo.SaveUser(ctx, fresh); err != nil {
		return entities.User{}, err
	}
	return fresh, nil
}

// GetChat mirrors GetUser for group chats. Chats refresh on a slower budget;
// titles and public links change rarely.
func (s Service) GetChat(ctx context.Context, chatID int64) (entities.Chat, error) {
	if chatID >= 0 {
		return entities.Chat{}, domainerrors.ErrInvalidChatID
	}

	chat, err := s.Repo.GetChat(ctx, chatID)
	known := true
	if err != nil {
		if !errors.Is(err, domainerrors.ErrChatNotFound) {
			return entities.Chat{}, err
		}
		known = false
	}

	if known && !s.stale(chat.LastUpdate, s.chatStaleness()) {
		return chat, nil
	}

	fresh, err := s.Gateway.FetchChat(ctx, chatID)
	if err != nil {
		if known {
			s.logger().Warn("chat refresh failed, serving stale profile",
				"event", "member_directory_chat_refresh_failed",
				"module", "chat-moderation/member-directory",
				"layer", "application",
				"chat_id", chatID,
				"error", err.Error(),
			)
			return chat, nil
		}
		return entities.Chat{}, err
	}
	fresh.LastUpdate = s.now()
	if err := s.Repo.SaveChat(ctx, fresh); err != nil {
		return entities.Chat{}, err
	}
	return fresh, nil
}

// GetParticipant answers "is this user in this chat, and as what" through
// the TTL cache. Absence is cached too: a user who just got kicked should
// not cost a transport round trip per button press.
func (s Service) GetParticipant(ctx context.Context, chatID int64, userID int64) (entities.Participant, bool, error) {
	now := s.now()
	if entry, ok := s.cacheGet(chatID, userID, now); ok {
		return entry.Participant, entry.Present, nil
	}

	participant, present, err := s.Gateway.FetchParticipant(ctx, chatID, userID)
	if err != nil {
		return entities.Participant{}, false, err
	}
	s.cachePut(chatID, userID, ports.CachedParticipant{
		Participant: participant,
		Present:     present,
		ExpiresAt:   now.Add(s.participantTTL()),
	})
	return participant, present, nil
}

func (s Service) IsParticipant(ctx context.Context, chatID int64, userID int64) (bool, error) {
	_, present, err := s.GetParticipant(ctx, chatID, userID)
	return present, err
}

// IsAdmin reports whether the user holds an admin or creator role in the
// chat. A non-participant is never an admin.
func (s Service) IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error) {
	participant, present, err := s.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if !present {
		return false, nil
	}
	return participant.IsAdmin(), nil
}

func (s Service) cacheGet(chatID int64, userID int64, now time.Time) (ports.CachedParticipant, bool) {
	if s.Cache == nil {
		return ports.CachedParticipant{}, false
	}
	return s.Cache.Get(chatID, userID, now)
}

func (s Service) cachePut(chatID int64, userID int64, entry ports.CachedParticipant) {
	if s.Cache != nil {
		s.Cache.Put(chatID, userID, entry)
	}
}

func (s Service) stale(lastUpdate time.Time, budget time.Duration) bool {
	if lastUpdate.IsZero() {
		return true
	}
	return s.now().Sub(lastUpdate) > budget
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now().UTC()
}

func (s Service) userStaleness() time.Duration {
	if s.UserStaleness > 0 {
		return s.UserStaleness
	}
	return defaultUserStaleness
}

func (s Service) chatStaleness() time.Duration {
	if s.ChatStaleness > 0 {
		return s.ChatStaleness
	}
	return defaultChatStaleness
}

func (s Service) participantTTL() time.Duration {
	if s.ParticipantTTL > 0 {
		return s.ParticipantTTL
	}
	return defaultParticipantTTL
}

func (s Service) logger() *slog.Logger {
	return ResolveLogger(s.Logger)
}
