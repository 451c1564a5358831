package memory

import (
	"context"
	"sync"

	"bobbot/contexts/chat-moderation/member-directory/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/member-directory/domain/errors"
	"bobbot/contexts/chat-moderation/member-directory/ports"
)

type participantKey struct {
	chatID int64
	userID int64
}

// Gateway is a scripted ParticipantGateway for tests and the in-process
// runtime. Fetch counters let tests assert how often the transport was
// actually consulted.
type Gateway struct {
	mu           sync.Mutex
	users        map[int64]entities.User
	chats        map[int64]entities.Chat
	participants map[participantKey]entities.Participant

	FailFetch bool

	userFetches        map[int64]int
	chatFetches        map[int64]int
	participantFetches map[participantKey]int
}

func NewGateway() *Gateway {
	return &Gateway{
		users:              make(map[int64]entities.User),
		chats:              make(map[int64]entities.Chat),
		participants:       make(map[participantKey]entities.Participant),
		userFetches:        make(map[int64]int),
		chatFetches:        make(map[int64]int),
		participantFetches: make(map[participantKey]int),
	}
}

func (g *Gateway) SeedUser(user entities.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[user.UserID] = user
}

func (g *Gateway) SeedChat(chat entities.Chat) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chats[chat.ChatID] = chat
}

func (g *Gateway) SeedParticipant(participant entities.Participant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.participants[participantKey{chatID: participant.ChatID, userID: participant.UserID}] = participant
}

func (g *Gateway) RemoveParticipant(chatID int64, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.participants, participantKey{chatID: chatID, userID: userID})
}

func (g *Gateway) FetchUser(_ context.Context, userID int64) (entities.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.userFetches[userID]++
	if g.FailFetch {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	user, ok := g.users[userID]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return user, nil
}

func (g *Gateway) FetchChat(_ context.Context, chatID int64) (entities.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chatFetches[chatID]++
	if g.FailFetch {
		return entities.Chat{}, domainerrors.ErrChatNotFound
	}
	chat, ok := g.chats[chatID]
	if !ok {
		return entities.Chat{}, domainerrors.ErrChatNotFound
	}
	return chat, nil
}

func (g *Gateway) FetchParticipant(_ context.Context, chatID int64, userID int64) (entities.Participant, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := participantKey{chatID: chatID, userID: userID}
	g.participantFetches[key]++
	if g.FailFetch {
		return entities.Participant{}, false, domainerrors.ErrChatNotFound
	}
	participant, ok := g.participants[key]
	return participant, ok, nil
}

func (g *Gateway) UserFetchCount(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.userFetches[userID]
}

func (g *Gateway) ChatFetchCount(chatID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chatFetches[chatID]
}

func (g *Gateway) ParticipantFetchCount(chatID int64, userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.participantFetches[participantKey{chatID: chatID, userID: userID}]
}

var _ ports.ParticipantGateway = (*Gateway)(nil)
