package chatadapter

import (
	"context"
	"log/slog"

	"bobbot/contexts/chat-moderation/poll-engine/application"
	transportchat "bobbot/contexts/chat-moderation/poll-engine/transport/chat"
)

// Route binds a match predicate to a handler. Routes are declared statically
// in NewDispatcher; adding an update handler means adding an entry there.
type Route struct {
	Name   string
	Match  func(transportchat.Update) bool
	Handle func(context.Context, transportchat.Update) error
}

// Dispatcher fans inbound updates out to the first matching route.
type Dispatcher struct {
	routes []Route
	logger *slog.Logger
}

func NewDispatcher(handler Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: application.ResolveLogger(logger),
		routes: []Route{
			{
				Name: "kick_command",
				Match: func(update transportchat.Update) bool {
					return update.Command != nil && commandPattern.MatchString(update.Command.Text)
				},
				Handle: func(ctx context.Context, update transportchat.Update) error {
					return handler.HandleKickCommand(ctx, *update.Command)
				},
			},
			{
				Name: "vote_callback",
				Match: func(update transportchat.Update) bool {
					return update.Callback != nil && transportchat.IsVoteCallback(update.Callback.Data)
				},
				Handle: func(ctx context.Context, update transportchat.Update) error {
					return handler.HandleVoteCallback(ctx, *update.Callback)
				},
			},
		},
	}
}

// Dispatch routes one update. Unmatched updates are dropped silently; the
// bot shares its chats with plenty of traffic that is not for it.
func (d *Dispatcher) Dispatch(ctx context.Context, update transportchat.Update) error {
	for _, route := range d.routes {
		if !route.Match(update) {
			continue
		}
		if err := route.Handle(ctx, update); err != nil {
			d.logger.Error("update handler failed",
				"event", "dispatch_failed",
				"module", "chat-moderation/poll-engine",
				"layer", "adapter",
				"route", route.Name,
				"error", err.Error(),
			)
			return err
		}
		return nil
	}
	return nil
}
