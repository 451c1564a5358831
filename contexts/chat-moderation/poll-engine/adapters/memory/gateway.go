package memory

import (
	"context"
	"sync"

	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

type chatKey struct {
	chatID int64
	itemID int64
}

type sentMessage struct {
	message ports.ChatMessage
	buttons []ports.Button
	replyTo int64
}

// Gateway is an in-process chat transport used for tests and local wiring
// while runtime binding to a real chat client lands. Deny switches make it
// fail with the classified gateway errors.
type Gateway struct {
	mu sync.Mutex

	nextMessageID int64
	messages      map[chatKey]sentMessage
	banned        map[chatKey]bool
	callbacks     []string

	DenyDelete bool
	DenyBan    bool
	FailSend   bool

	revokeCalls int
	deleteCalls int
}

func NewGateway() *Gateway {
	return &Gateway{
		messages: make(map[chatKey]sentMessage),
		banned:   make(map[chatKey]bool),
	}
}

// SeedMessage places a user message into a chat and returns its id, standing
// in for the message a poll gets called on.
func (g *Gateway) SeedMessage(chatID int64, authorID int64, text string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMessageID++
	id := g.nextMessageID
	g.messages[chatKey{chatID, id}] = sentMessage{
		message: ports.ChatMessage{MessageID: id, ChatID: chatID, AuthorID: authorID, Text: text},
	}
	return id
}

func (g *Gateway) SendReply(
	_ context.Context,
	chatID int64,
	replyToMessageID int64,
	text string,
	buttons []ports.Button,
) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSend {
		return 0, domainerrors.ErrTransport
	}
	g.nextMessageID++
	id := g.nextMessageID
	g.messages[chatKey{chatID, id}] = sentMessage{
		message: ports.ChatMessage{MessageID: id, ChatID: chatID, Text: text},
		buttons: buttons,
		replyTo: replyToMessageID,
	}
	return id, nil
}

func (g *Gateway) EditMessage(
	_ context.Context,
	chatID int64,
	messageID int64,
	text string,
	buttons []ports.Button,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := chatKey{chatID, messageID}
	row, ok := g.messages[key]
	if !ok {
		return domainerrors.ErrMessageNotFound
	}
	row.message.Text = text
	row.buttons = buttons
	g.messages[key] = row
	return nil
}

func (g *Gateway) GetMessage(_ context.Context, chatID int64, messageID int64) (ports.ChatMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.messages[chatKey{chatID, messageID}]
	if !ok {
		return ports.ChatMessage{}, domainerrors.ErrMessageNotFound
	}
	return row.message, nil
}

func (g *Gateway) DeleteMessage(_ context.Context, chatID int64, messageID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteCalls++
	if g.DenyDelete {
		return domainerrors.ErrMissingCapability
	}
	key := chatKey{chatID, messageID}
	if _, ok := g.messages[key]; !ok {
		return domainerrors.ErrMessageNotFound
	}
	delete(g.messages, key)
	return nil
}

func (g *Gateway) RevokeAccess(_ context.Context, chatID int64, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokeCalls++
	if g.DenyBan {
		return domainerrors.ErrMissingCapability
	}
	g.banned[chatKey{chatID, userID}] = true
	return nil
}

func (g *Gateway) AnswerCallback(_ context.Context, callbackID string, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, callbackID+": "+text)
	return nil
}

func (g *Gateway) Banned(chatID int64, userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.banned[chatKey{chatID, userID}]
}

func (g *Gateway) MessageText(chatID int64, messageID int64) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.messages[chatKey{chatID, messageID}]
	if !ok {
		return "", false
	}
	return row.message.Text, true
}

func (g *Gateway) MessageButtons(chatID int64, messageID int64) []ports.Button {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.messages[chatKey{chatID, messageID}]
	if !ok {
		return nil
	}
	return append([]ports.Button(nil), row.buttons...)
}

func (g *Gateway) RevokeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.revokeCalls
}

func (g *Gateway) Callbacks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.callbacks...)
}

var _ ports.ChatGateway = (*Gateway)(nil)
