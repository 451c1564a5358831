package bootstrap

import (
	"context"

	mdapplication "bobbot/contexts/chat-moderation/member-directory/application"
	transportchat "bobbot/contexts/chat-moderation/poll-engine/transport/chat"
)

// DirectoryAdapter narrows the member directory service to the identity
// surface the poll engine's chat handler consumes.
type DirectoryAdapter struct {
	Service mdapplication.Service
}

func (d DirectoryAdapter) UserLink(ctx context.Context, userID int64) (string, error) {
	user, err := d.Service.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Link(), nil
}

func (d DirectoryAdapter) IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error) {
	return d.Service.IsAdmin(ctx, chatID, userID)
}

func (d DirectoryAdapter) IsParticipant(ctx context.Context, chatID int64, userID int64) (bool, error) {
	return d.Service.IsParticipant(ctx, chatID, userID)
}

// ChannelUpdateSource feeds the bot loop from a channel. The local runtime
// and tests push updates into it; a real transport client would implement
// UpdateSource directly.
type ChannelUpdateSource struct {
	C chan transportchat.Update
}

func NewChannelUpdateSource(buffer int) *ChannelUpdateSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelUpdateSource{C: make(chan transportchat.Update, buffer)}
}

func (s *ChannelUpdateSource) Receive(ctx context.Context) (transportchat.Update, error) {
	select {
	case <-ctx.Done():
		return transportchat.Update{}, ctx.Err()
	case update := <-s.C:
		return update, nil
	}
}
